package resolver

// CodeReference is one raw code reference collected from a value set in a
// search or report entity, before lookup enrichment.
type CodeReference struct {
	CodeValue       string
	CodeSystem      string
	DisplayName     string
	IncludeChildren bool

	// IsRefset marks a true reference set declaration. IsPseudoRefset
	// marks the container entry of a value set that declared itself a
	// refset but inlined member codes; IsPseudoMember marks those members.
	IsRefset       bool
	IsPseudoRefset bool
	IsPseudoMember bool

	ValueSetGUID        string
	ValueSetDescription string

	// TableContext and ColumnContext carry every table/column the
	// reference was found under; used only for medication/clinical
	// disambiguation.
	TableContext  []string
	ColumnContext []string

	SourceGUID      string
	SourceName      string
	SourceType      string
	SourceContainer string
}

// SkipStats tallies references excluded during resolution. These are data
// quality counters, not errors. Pseudo container and EMISINTERNAL
// exclusions are tallied downstream where the rows are routed.
type SkipStats struct {
	MissingGUID int `json:"missing_guid"`
}

// Resolution is the flattened result of walking one or more entities.
type Resolution struct {
	Refs    []CodeReference
	Skipped SkipStats
}
