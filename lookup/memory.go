package lookup

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/carelens/emisx/codes"
)

// MemoryIndex is an in-memory Index, used for tests and offline runs where
// the lookup table has been exported to CSV.
type MemoryIndex struct {
	records map[string]Record
}

// NewMemoryIndex creates an index over the given records.
func NewMemoryIndex(records []Record) *MemoryIndex {
	idx := &MemoryIndex{records: make(map[string]Record, len(records))}
	for _, rec := range records {
		rec.SNOMEDCode = codes.Normalize(rec.SNOMEDCode)
		idx.records[rec.EMISGUID] = rec
	}
	return idx
}

// LoadCSV builds a MemoryIndex from a CSV export with a header row of
// emis_guid, snomed_code, descendants, has_qualifier, is_parent, code_type.
func LoadCSV(path string) (*MemoryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lookup CSV: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads lookup records from r. Malformed rows are skipped.
func ReadCSV(r io.Reader) (*MemoryIndex, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rec := Record{
			EMISGUID:   field(row, col, "emis_guid"),
			SNOMEDCode: field(row, col, "snomed_code"),
			CodeType:   field(row, col, "code_type"),
		}
		if rec.EMISGUID == "" {
			continue
		}
		rec.Descendants, _ = strconv.Atoi(field(row, col, "descendants"))
		rec.HasQualifier = parseBool(field(row, col, "has_qualifier"))
		rec.IsParent = parseBool(field(row, col, "is_parent"))
		records = append(records, rec)
	}
	return NewMemoryIndex(records), nil
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.ToLower(s))
	return b
}

// Get implements Index.
func (m *MemoryIndex) Get(_ context.Context, guid string) (*Record, bool, error) {
	rec, ok := m.records[guid]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

// GetBatch implements Index.
func (m *MemoryIndex) GetBatch(_ context.Context, guids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(guids))
	for _, guid := range guids {
		if rec, ok := m.records[guid]; ok {
			out[guid] = rec
		}
	}
	return out, nil
}

// Len reports the number of records held.
func (m *MemoryIndex) Len() int {
	return len(m.records)
}
