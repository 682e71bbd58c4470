package dedupe

import "github.com/carelens/emisx/lookup"

// Mode selects the dedupe key strategy.
type Mode int

const (
	// GlobalUnique keeps one row per EMIS GUID across the whole input.
	GlobalUnique Mode = iota
	// PerSource keeps one row per (source GUID, EMIS GUID) pair, so the
	// same code referenced from two entities survives twice.
	PerSource
)

func (m Mode) String() string {
	if m == PerSource {
		return "per-source"
	}
	return "global-unique"
}

// SkipStats tallies references excluded during deduplication, merged with
// the resolver's tally for the pipeline summary.
type SkipStats struct {
	EMISInternal     int `json:"emisinternal"`
	MissingGUID      int `json:"missing_guid"`
	PseudoContainers int `json:"pseudo_containers"`
}

// PseudoRefsetGroup is the container listing for one pseudo-refset value
// set: excluded from the code output, reported with its member count.
type PseudoRefsetGroup struct {
	ValueSetGUID string `json:"valueset_guid"`
	Description  string `json:"description"`
	MemberCount  int    `json:"member_count"`
}

// Result is the partitioned output of one dedupe pass. The six lists are
// disjoint: a surviving reference lands in exactly one of them.
type Result struct {
	Clinical                []lookup.EnrichedRow
	Medications             []lookup.EnrichedRow
	ClinicalPseudoMembers   []lookup.EnrichedRow
	MedicationPseudoMembers []lookup.EnrichedRow
	Refsets                 []lookup.EnrichedRow
	PseudoRefsets           []PseudoRefsetGroup

	Skipped SkipStats
}

// Rows returns every surviving code row across the partitions, refsets
// included, pseudo containers excluded.
func (r *Result) Rows() []lookup.EnrichedRow {
	out := make([]lookup.EnrichedRow, 0,
		len(r.Clinical)+len(r.Medications)+len(r.ClinicalPseudoMembers)+len(r.MedicationPseudoMembers)+len(r.Refsets))
	out = append(out, r.Clinical...)
	out = append(out, r.Medications...)
	out = append(out, r.ClinicalPseudoMembers...)
	out = append(out, r.MedicationPseudoMembers...)
	out = append(out, r.Refsets...)
	return out
}
