package export

import (
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// HierarchyRow is one parent→child edge from a lineage trace, flattened
// for export.
type HierarchyRow struct {
	ParentCode string `json:"parent_code"`
	Code       string `json:"code"`
	Display    string `json:"display"`
}

// Metadata describes one export payload.
type Metadata struct {
	ExportType string `json:"export_type"`
	Timestamp  string `json:"timestamp"`
	TotalCodes int    `json:"total_codes"`
	RootCount  int    `json:"root_count"`
}

// HierarchicalExport is the JSON payload for hierarchy exports. Hierarchy
// maps each parent code to its deduplicated children; multi-root traces
// list the same map under every root's parents.
type HierarchicalExport struct {
	ExportMetadata     Metadata                  `json:"export_metadata"`
	Hierarchy          map[string][]HierarchyRow `json:"hierarchy"`
	SharedLineageCodes []string                  `json:"shared_lineage_codes"`
}

// BuildHierarchicalJSON groups rows by parent code, deduplicating children
// per (parent, child) pair.
func BuildHierarchicalJSON(rows []HierarchyRow, sharedLineageCodes []string) *HierarchicalExport {
	hierarchy := make(map[string][]HierarchyRow)
	seen := make(map[string]bool)
	total := 0

	for _, row := range rows {
		edge := row.ParentCode + "\x00" + row.Code
		if seen[edge] {
			continue
		}
		seen[edge] = true
		hierarchy[row.ParentCode] = append(hierarchy[row.ParentCode], row)
		total++
	}
	for parent := range hierarchy {
		children := hierarchy[parent]
		slices.SortStableFunc(children, func(a, b HierarchyRow) int {
			return strings.Compare(a.Code, b.Code)
		})
		hierarchy[parent] = children
	}

	shared := append([]string{}, sharedLineageCodes...)
	slices.Sort(shared)
	shared = slices.Compact(shared)

	return &HierarchicalExport{
		ExportMetadata: Metadata{
			ExportType: "hierarchy",
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			TotalCodes: total,
			RootCount:  len(hierarchy),
		},
		Hierarchy:          hierarchy,
		SharedLineageCodes: shared,
	}
}
