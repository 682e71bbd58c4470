// Package lookup enriches raw code references with the external GUID to
// SNOMED lookup table.
package lookup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carelens/emisx/codes"
	"github.com/carelens/emisx/resolver"
)

// Enricher merges code references with lookup records.
type Enricher struct {
	index Index
	log   zerolog.Logger
}

// NewEnricher creates an Enricher over the given index.
func NewEnricher(index Index, log zerolog.Logger) *Enricher {
	return &Enricher{index: index, log: log}
}

// Enrich resolves the GUIDs of all references in one batch and merges the
// lookup records in. A lookup miss is not an error: the row keeps its XML
// display name and is marked not found. True refsets never consult the
// table; their GUID is their SNOMED code by definition.
func (e *Enricher) Enrich(ctx context.Context, refs []resolver.CodeReference) ([]EnrichedRow, error) {
	var guids []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		if ref.IsRefset || ref.IsPseudoRefset || ref.CodeValue == "" {
			continue
		}
		if !seen[ref.CodeValue] {
			seen[ref.CodeValue] = true
			guids = append(guids, ref.CodeValue)
		}
	}

	batch, err := e.index.GetBatch(ctx, guids)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich references: %w", err)
	}

	rows := make([]EnrichedRow, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, e.enrichOne(ref, batch))
	}

	e.log.Debug().
		Int("references", len(refs)).
		Int("lookedUp", len(guids)).
		Int("found", len(batch)).
		Msg("Enriched code references")

	return rows, nil
}

func (e *Enricher) enrichOne(ref resolver.CodeReference, batch map[string]Record) EnrichedRow {
	row := EnrichedRow{CodeReference: ref}

	if ref.IsRefset {
		row.SNOMEDCode = ref.CodeValue
		row.MappingFound = true
		row.CodeType = CodeTypeRefset
		return row
	}
	if ref.IsPseudoRefset {
		return row
	}

	rec, ok := batch[ref.CodeValue]
	if !ok {
		row.MappingFound = false
		return row
	}
	row.SNOMEDCode = codes.Normalize(rec.SNOMEDCode)
	row.MappingFound = row.SNOMEDCode != ""
	row.Descendants = rec.Descendants
	row.HasQualifier = rec.HasQualifier
	row.IsParent = rec.IsParent
	row.CodeType = rec.CodeType
	return row
}
