// Package pipeline wires document resolution, lookup enrichment and
// deduplication into one pass.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carelens/emisx/dedupe"
	"github.com/carelens/emisx/lookup"
	"github.com/carelens/emisx/models/emis"
	"github.com/carelens/emisx/resolver"
)

// Pipeline runs the extraction pass over parsed documents.
type Pipeline struct {
	resolver *resolver.Service
	enricher *lookup.Enricher
	engine   *dedupe.Engine
	log      zerolog.Logger
}

// New creates a Pipeline over the given lookup index.
func New(index lookup.Index, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		resolver: resolver.NewService(log),
		enricher: lookup.NewEnricher(index, log),
		engine:   dedupe.NewEngine(log),
		log:      log,
	}
}

// Report is the outcome of one pipeline run.
type Report struct {
	Mode    string           `json:"mode"`
	Result  *dedupe.Result   `json:"result"`
	Skipped dedupe.SkipStats `json:"skipped"`
}

// Run resolves, enriches and deduplicates one document.
func (p *Pipeline) Run(ctx context.Context, doc *emis.EnquiryDocument, mode dedupe.Mode) (*Report, error) {
	resolution := p.resolver.ResolveDocument(doc)

	rows, err := p.enricher.Enrich(ctx, resolution.Refs)
	if err != nil {
		return nil, fmt.Errorf("pipeline enrichment failed: %w", err)
	}

	result := p.engine.Dedupe(rows, mode)

	skipped := result.Skipped
	skipped.MissingGUID += resolution.Skipped.MissingGUID
	result.Skipped = skipped

	p.log.Info().
		Str("mode", mode.String()).
		Int("clinical", len(result.Clinical)).
		Int("medications", len(result.Medications)).
		Int("refsets", len(result.Refsets)).
		Int("pseudoRefsets", len(result.PseudoRefsets)).
		Msg("Pipeline run complete")

	return &Report{Mode: mode.String(), Result: result, Skipped: skipped}, nil
}
