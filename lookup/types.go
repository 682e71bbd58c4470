package lookup

import (
	"context"

	"github.com/carelens/emisx/resolver"
)

// CodeTypeRefset is the code type reported for reference sets.
const CodeTypeRefset = "refset"

// Record is one row of the GUID to SNOMED lookup table.
type Record struct {
	EMISGUID     string `db:"emis_guid"`
	SNOMEDCode   string `db:"snomed_code"`
	Descendants  int    `db:"descendants"`
	HasQualifier bool   `db:"has_qualifier"`
	IsParent     bool   `db:"is_parent"`
	CodeType     string `db:"code_type"`
}

// Index answers GUID lookups. Implementations must be able to answer an
// arbitrary batch of GUIDs without materialising the full table.
type Index interface {
	Get(ctx context.Context, guid string) (*Record, bool, error)
	GetBatch(ctx context.Context, guids []string) (map[string]Record, error)
}

// EnrichedRow is a code reference merged with its lookup record.
type EnrichedRow struct {
	resolver.CodeReference

	// SNOMEDCode is the normalized code text; empty when the lookup
	// missed. True refsets carry their own GUID here.
	SNOMEDCode   string
	MappingFound bool
	Descendants  int
	HasQualifier bool
	IsParent     bool
	CodeType     string
}
