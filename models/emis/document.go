package emis

import "encoding/xml"

// EnquiryDocument is the root of an EMIS search/report export. Only the
// elements the extraction pipeline consumes are modelled; unknown elements
// are ignored by the decoder.
type EnquiryDocument struct {
	XMLName xml.Name       `xml:"enquiryDocument"`
	Folders []ReportFolder `xml:"reportFolder"`
	Reports []Report       `xml:"report"`
}

// ReportFolder groups searches/reports in the EMIS tree.
type ReportFolder struct {
	ID           string `xml:"id"`
	Name         string `xml:"name"`
	ParentFolder string `xml:"parentFolder"`
}

// Report is a single search or list report entity. A report with a
// population block is a search; anything else is treated as a list report
// over a parent search's result set.
type Report struct {
	ID           string      `xml:"id"`
	Name         string      `xml:"name"`
	Description  string      `xml:"description"`
	Folder       string      `xml:"folder"`
	CreationTime string      `xml:"creationTime"`
	SearchDate   string      `xml:"searchDate"`
	Parent       string      `xml:"parent>searchIdentifier>reportGuid"`
	Population   *Population `xml:"population"`
	ListReport   *ListReport `xml:"listReport"`
}

// SourceType reports the entity kind as used in export source columns.
func (r *Report) SourceType() string {
	if r.Population != nil {
		return "[Search]"
	}
	return "[Report]"
}

// Population holds the criteria groups of a search.
type Population struct {
	CriteriaGroups []CriteriaGroup `xml:"criteriaGroup"`
}

// ListReport holds column groups of a list report, which may themselves
// carry criteria.
type ListReport struct {
	ColumnGroups []ColumnGroup `xml:"columnGroups>columnGroup"`
}

// ColumnGroup is one output column group of a list report.
type ColumnGroup struct {
	LogicalTable string     `xml:"logicalTableName"`
	Criteria     []Criterion `xml:"criteriaDetails>criteria>criterion"`
}

// CriteriaGroup is one AND/OR group in a search population.
type CriteriaGroup struct {
	Definition *GroupDefinition `xml:"definition"`
}

// GroupDefinition carries the member criteria and the group actions.
type GroupDefinition struct {
	MemberOperator string      `xml:"memberOperator"`
	Criteria       []Criterion `xml:"criteria>criterion"`
	ActionIfTrue   string      `xml:"actionIfTrue"`
	ActionIfFalse  string      `xml:"actionIfFalse"`
}

// Criterion is a single filter over one logical table. Linked criteria
// represent joins to related records and nest recursively.
type Criterion struct {
	ID               string            `xml:"id"`
	Table            string            `xml:"table"`
	DisplayName      string            `xml:"displayName"`
	Negation         bool              `xml:"negation"`
	FilterAttributes []FilterAttribute `xml:"filterAttribute"`
	LinkedCriteria   []Criterion       `xml:"linkedCriterion>criterion"`
}

// FilterAttribute holds the column/value restrictions of a criterion.
type FilterAttribute struct {
	ColumnValues []ColumnValue `xml:"columnValue"`
}

// ColumnValue restricts one column to a set of values.
type ColumnValue struct {
	Column    string     `xml:"column"`
	InNotIn   string     `xml:"inNotIn"`
	ValueSets []ValueSet `xml:"valueSet"`
}

// ValueSet groups code values under one code system.
type ValueSet struct {
	ID          string       `xml:"id"`
	CodeSystem  string       `xml:"codeSystem"`
	Description string       `xml:"description"`
	Values      []ValueBlock `xml:"values"`
}

// ValueBlock is one values element. A block with IsRefset set and no plain
// member values declares a reference set; a block with a value is a member
// code entry.
type ValueBlock struct {
	Value           string `xml:"value"`
	DisplayName     string `xml:"displayName"`
	IncludeChildren bool   `xml:"includeChildren"`
	IsRefset        bool   `xml:"isRefset"`
}
