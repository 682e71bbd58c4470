package dedupe

import (
	"github.com/carelens/emisx/codes"
	"github.com/carelens/emisx/lookup"
)

// Completeness weights. Powers of two keep the priority order strict: a
// row winning on a higher-priority component outranks any combination of
// lower ones. The ordering is the contract; the numbers are not.
const (
	weightValueSetGUID        = 32
	weightValueSetDescription = 16
	weightDescription         = 8
	weightSource              = 4
	weightIncludeChildren     = 2
	weightContext             = 1
)

// Score computes the completeness score used to pick the survivor when two
// rows collide on a dedupe key. Higher is more complete.
func Score(row lookup.EnrichedRow) int {
	s := 0
	if !codes.IsPlaceholder(row.ValueSetGUID) {
		s += weightValueSetGUID
	}
	if !codes.IsPlaceholder(row.ValueSetDescription) {
		s += weightValueSetDescription
	}
	if !codes.IsPlaceholder(row.DisplayName) {
		s += weightDescription
	}
	if row.SourceType != "" || row.SourceName != "" {
		s += weightSource
	}
	if row.IncludeChildren {
		s += weightIncludeChildren
	}
	if len(row.TableContext) > 0 || len(row.ColumnContext) > 0 {
		s += weightContext
	}
	return s
}
