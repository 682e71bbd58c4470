package lookup

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// SQLIndex answers GUID lookups from a relational lookup table, filtering
// by GUID set server-side so the table is never loaded whole.
type SQLIndex struct {
	db    *sqlx.DB
	table string
	log   zerolog.Logger
}

// NewSQLIndex creates an index over the given table. The table must carry
// emis_guid, snomed_code, descendants, has_qualifier, is_parent and
// code_type columns.
func NewSQLIndex(db *sqlx.DB, table string, log zerolog.Logger) *SQLIndex {
	if table == "" {
		table = "snomed_lookup"
	}
	return &SQLIndex{db: db, table: table, log: log}
}

// Get implements Index.
func (s *SQLIndex) Get(ctx context.Context, guid string) (*Record, bool, error) {
	batch, err := s.GetBatch(ctx, []string{guid})
	if err != nil {
		return nil, false, err
	}
	rec, ok := batch[guid]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

// GetBatch implements Index.
func (s *SQLIndex) GetBatch(ctx context.Context, guids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(guids))
	if len(guids) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT emis_guid, snomed_code, descendants, has_qualifier, is_parent, code_type
		FROM %s
		WHERE emis_guid = ANY($1)`, s.table)

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, pq.Array(guids)); err != nil {
		return nil, fmt.Errorf("failed to query lookup table: %w", err)
	}

	for _, rec := range records {
		out[rec.EMISGUID] = rec
	}

	s.log.Debug().
		Int("requested", len(guids)).
		Int("found", len(out)).
		Msg("Resolved GUID batch against lookup table")

	return out, nil
}
