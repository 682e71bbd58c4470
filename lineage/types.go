package lineage

// Node is one concept in a traced hierarchy. Children are owned
// exclusively by their parent: the result is a tree, not a graph, and
// codes reachable by more than one path are recorded once with their
// extra paths noted.
type Node struct {
	Code             string   `json:"code"`
	Display          string   `json:"display"`
	EMISGUID         string   `json:"emis_guid,omitempty"`
	Inactive         bool     `json:"inactive"`
	Depth            int      `json:"depth"`
	DirectParentCode string   `json:"direct_parent_code,omitempty"`
	LineagePath      string   `json:"lineage_path"`
	SharedLineage    bool     `json:"shared_lineage"`
	AllPaths         []string `json:"all_paths,omitempty"`
	Children         []*Node  `json:"children,omitempty"`
}

// TraceResult is the outcome of tracing one root. Nodes are immutable
// once the result is returned.
type TraceResult struct {
	Root               *Node    `json:"root"`
	NodeCount          int      `json:"node_count"`
	APICalls           int      `json:"api_calls"`
	PrunedBranches     int      `json:"pruned_branches"`
	Truncated          bool     `json:"truncated"`
	TruncationReason   string   `json:"truncation_reason,omitempty"`
	SharedLineageCodes []string `json:"shared_lineage_codes"`
}

// FullTraceResult aggregates traces across every parent of a batch
// expansion.
type FullTraceResult struct {
	Trees              map[string]*TraceResult `json:"trees"`
	TotalNodes         int                     `json:"total_nodes"`
	TotalAPICalls      int                     `json:"total_api_calls"`
	SharedLineageCodes []string                `json:"shared_lineage_codes"`
	TruncationReasons  map[string]string       `json:"truncation_reasons,omitempty"`
	Errors             map[string]string       `json:"errors,omitempty"`
}
