// Package dedupe collapses enriched code references into canonical rows
// under one of two key strategies, keeping the most complete record on
// collision, and partitions the survivors into the export categories.
package dedupe

import (
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/carelens/emisx/classifier"
	"github.com/carelens/emisx/codes"
	"github.com/carelens/emisx/lookup"
)

// Engine runs dedupe passes.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// bucket is an insertion-ordered key → row map.
type bucket struct {
	order []string
	rows  map[string]lookup.EnrichedRow
}

func newBucket() *bucket {
	return &bucket{rows: make(map[string]lookup.EnrichedRow)}
}

// add inserts or merges a row under key. On collision the higher
// completeness score survives; ties keep the existing row. In GlobalUnique
// mode a disagreement on include-children resolves the survivor's flag to
// false, whichever row wins.
func (b *bucket) add(key string, row lookup.EnrichedRow, mode Mode) {
	existing, ok := b.rows[key]
	if !ok {
		b.order = append(b.order, key)
		b.rows[key] = row
		return
	}

	winner := existing
	if Score(row) > Score(existing) {
		winner = row
	}
	if mode == GlobalUnique && existing.IncludeChildren != row.IncludeChildren {
		winner.IncludeChildren = false
	}
	b.rows[key] = winner
}

func (b *bucket) list() []lookup.EnrichedRow {
	out := make([]lookup.EnrichedRow, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.rows[key])
	}
	return out
}

// Dedupe runs one pass over the rows. The medication/clinical bucket for a
// GUID is established before any in-bucket merging: if any occurrence of a
// GUID classifies as medication, every occurrence of that GUID is routed
// to the medication side, so a code never appears in both output sets.
func (e *Engine) Dedupe(rows []lookup.EnrichedRow, mode Mode) *Result {
	result := &Result{}

	// First pass: find GUIDs claimed by a medication context.
	medicationGUIDs := make(map[string]bool)
	for _, row := range rows {
		if row.IsRefset || row.IsPseudoRefset || row.CodeValue == "" {
			continue
		}
		if classifier.Classify(row.CodeSystem, row.TableContext, row.ColumnContext) == classifier.Medication {
			medicationGUIDs[row.CodeValue] = true
		}
	}

	clinical := newBucket()
	medications := newBucket()
	clinicalPseudo := newBucket()
	medicationPseudo := newBucket()
	refsets := newBucket()
	containers := newBucket()

	for _, row := range rows {
		switch {
		case row.IsPseudoRefset:
			result.Skipped.PseudoContainers++
			containers.add(row.ValueSetGUID, row, mode)
		case row.CodeValue == "":
			result.Skipped.MissingGUID++
		case classifier.Classify(row.CodeSystem, row.TableContext, row.ColumnContext) == classifier.Internal:
			result.Skipped.EMISInternal++
		case row.IsRefset:
			refsets.add(e.key(row, mode), row, mode)
		case row.IsPseudoMember:
			// Members dedupe within their owning value set.
			key := row.ValueSetGUID + "\x00" + e.key(row, mode)
			if medicationGUIDs[row.CodeValue] {
				medicationPseudo.add(key, row, mode)
			} else {
				clinicalPseudo.add(key, row, mode)
			}
		case medicationGUIDs[row.CodeValue]:
			medications.add(e.key(row, mode), row, mode)
		default:
			clinical.add(e.key(row, mode), row, mode)
		}
	}

	result.Clinical = sortRows(clinical.list())
	result.Medications = sortRows(medications.list())
	result.ClinicalPseudoMembers = sortRows(clinicalPseudo.list())
	result.MedicationPseudoMembers = sortRows(medicationPseudo.list())
	result.Refsets = sortRows(refsets.list())
	result.PseudoRefsets = e.buildContainerGroups(containers, clinicalPseudo, medicationPseudo)

	e.log.Debug().
		Str("mode", mode.String()).
		Int("clinical", len(result.Clinical)).
		Int("medications", len(result.Medications)).
		Int("refsets", len(result.Refsets)).
		Int("pseudoRefsets", len(result.PseudoRefsets)).
		Int("skippedInternal", result.Skipped.EMISInternal).
		Msg("Deduplicated code references")

	return result
}

func (e *Engine) key(row lookup.EnrichedRow, mode Mode) string {
	if mode == PerSource {
		return row.SourceGUID + "\x00" + row.CodeValue
	}
	return row.CodeValue
}

// buildContainerGroups emits one group per pseudo-refset value set with
// its deduplicated member count. Multiple refset declarations inside one
// value set fold into a single group keyed by the value-set GUID.
func (e *Engine) buildContainerGroups(containers, clinicalPseudo, medicationPseudo *bucket) []PseudoRefsetGroup {
	memberCounts := make(map[string]map[string]bool)
	countMembers := func(b *bucket) {
		for _, row := range b.rows {
			set, ok := memberCounts[row.ValueSetGUID]
			if !ok {
				set = make(map[string]bool)
				memberCounts[row.ValueSetGUID] = set
			}
			set[row.CodeValue] = true
		}
	}
	countMembers(clinicalPseudo)
	countMembers(medicationPseudo)

	groups := make([]PseudoRefsetGroup, 0, len(containers.order))
	for _, guid := range containers.order {
		row := containers.rows[guid]
		description := row.ValueSetDescription
		if codes.IsPlaceholder(description) {
			description = row.DisplayName
		}
		groups = append(groups, PseudoRefsetGroup{
			ValueSetGUID: guid,
			Description:  description,
			MemberCount:  len(memberCounts[guid]),
		})
	}
	slices.SortStableFunc(groups, func(a, b PseudoRefsetGroup) int {
		return strings.Compare(a.ValueSetGUID, b.ValueSetGUID)
	})
	return groups
}

// sortRows orders output deterministically by value-set description, then
// display name, then code.
func sortRows(rows []lookup.EnrichedRow) []lookup.EnrichedRow {
	slices.SortStableFunc(rows, func(a, b lookup.EnrichedRow) int {
		if c := strings.Compare(a.ValueSetDescription, b.ValueSetDescription); c != 0 {
			return c
		}
		if c := strings.Compare(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return strings.Compare(a.CodeValue, b.CodeValue)
	})
	return rows
}
