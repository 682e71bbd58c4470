// Package resolver walks parsed search/report entities and flattens their
// criteria trees into raw code references.
package resolver

import (
	"github.com/rs/zerolog"

	"github.com/carelens/emisx/codes"
	"github.com/carelens/emisx/models/emis"
)

// Service resolves parsed EMIS entities into code references.
type Service struct {
	log zerolog.Logger
}

// NewService creates a resolver service.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log}
}

// source identifies the entity a reference originated from.
type source struct {
	guid      string
	name      string
	entity    string
	container string
}

// ResolveDocument resolves every report in a document.
func (s *Service) ResolveDocument(doc *emis.EnquiryDocument) *Resolution {
	res := &Resolution{}

	folderNames := make(map[string]string, len(doc.Folders))
	for _, folder := range doc.Folders {
		folderNames[folder.ID] = folder.Name
	}

	for i := range doc.Reports {
		report := &doc.Reports[i]
		src := source{
			guid:      report.ID,
			name:      report.Name,
			entity:    report.SourceType(),
			container: folderNames[report.Folder],
		}
		s.resolveReport(report, src, res)
	}

	s.log.Debug().
		Int("references", len(res.Refs)).
		Int("missingGuid", res.Skipped.MissingGUID).
		Msg("Resolved document")

	return res
}

// ResolveReport resolves a single report entity.
func (s *Service) ResolveReport(report *emis.Report) *Resolution {
	res := &Resolution{}
	src := source{guid: report.ID, name: report.Name, entity: report.SourceType()}
	s.resolveReport(report, src, res)
	return res
}

func (s *Service) resolveReport(report *emis.Report, src source, res *Resolution) {
	if report.Population != nil {
		for _, group := range report.Population.CriteriaGroups {
			if group.Definition == nil {
				continue
			}
			for i := range group.Definition.Criteria {
				s.walkCriterion(&group.Definition.Criteria[i], nil, src, res)
			}
		}
	}
	if report.ListReport != nil {
		for _, cg := range report.ListReport.ColumnGroups {
			tables := []string{}
			if cg.LogicalTable != "" {
				tables = append(tables, cg.LogicalTable)
			}
			for i := range cg.Criteria {
				s.walkCriterion(&cg.Criteria[i], tables, src, res)
			}
		}
	}
}

// walkCriterion descends a criterion and its linked criteria. Linked
// criteria form a tree by construction, so the recursion needs no cycle
// guard and must not stop before the deepest link.
func (s *Service) walkCriterion(criterion *emis.Criterion, parentTables []string, src source, res *Resolution) {
	tables := parentTables
	if criterion.Table != "" {
		tables = append(append([]string{}, parentTables...), criterion.Table)
	}

	for _, attr := range criterion.FilterAttributes {
		for _, cv := range attr.ColumnValues {
			var columns []string
			if cv.Column != "" {
				columns = []string{cv.Column}
			}
			for i := range cv.ValueSets {
				s.resolveValueSet(&cv.ValueSets[i], tables, columns, src, res)
			}
		}
	}

	for i := range criterion.LinkedCriteria {
		s.walkCriterion(&criterion.LinkedCriteria[i], tables, src, res)
	}
}

// resolveValueSet flattens one value set into references, applying the
// structural pseudo-refset rule: a refset declaration co-occurring with
// plain member values makes the set a pseudo-refset, whose declaration
// entries are dropped and whose members are kept as pseudo members. A
// refset declaration with no members alongside it is a true refset.
func (s *Service) resolveValueSet(vs *emis.ValueSet, tables, columns []string, src source, res *Resolution) {
	var hasRefsetMarker, hasMembers bool
	for _, block := range vs.Values {
		if block.IsRefset {
			hasRefsetMarker = true
		} else if !codes.IsPlaceholder(block.Value) {
			hasMembers = true
		}
	}
	isPseudo := hasRefsetMarker && hasMembers

	for _, block := range vs.Values {
		ref := CodeReference{
			CodeValue:           codes.Normalize(block.Value),
			CodeSystem:          vs.CodeSystem,
			DisplayName:         block.DisplayName,
			IncludeChildren:     block.IncludeChildren,
			ValueSetGUID:        vs.ID,
			ValueSetDescription: vs.Description,
			TableContext:        tables,
			ColumnContext:       columns,
			SourceGUID:          src.guid,
			SourceName:          src.name,
			SourceType:          src.entity,
			SourceContainer:     src.container,
		}

		switch {
		case block.IsRefset && isPseudo:
			// Pseudo-refset declaration entry: kept only so the dedupe
			// engine can build the container listing; never emitted as a
			// standalone code.
			ref.IsPseudoRefset = true
			res.Refs = append(res.Refs, ref)
		case block.IsRefset:
			if ref.CodeValue == "" {
				res.Skipped.MissingGUID++
				continue
			}
			ref.IsRefset = true
			res.Refs = append(res.Refs, ref)
		default:
			if ref.CodeValue == "" {
				res.Skipped.MissingGUID++
				continue
			}
			ref.IsPseudoMember = isPseudo
			res.Refs = append(res.Refs, ref)
		}
	}
}
