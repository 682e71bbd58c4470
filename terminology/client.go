// Package terminology talks to an external SNOMED terminology server:
// concept lookup, ECL expansion, direct-children queries, batch expansion
// with a bounded worker pool, and a session-scoped validated cache.
package terminology

import "context"

// Concept is one concept returned by the terminology server.
type Concept struct {
	Code     string `json:"code"`
	Display  string `json:"display"`
	System   string `json:"system"`
	Inactive bool   `json:"inactive"`
}

// ExpansionResult is the outcome of expanding one code. A failed item
// carries Err and empty children; a leaf concept carries neither children
// nor an error.
type ExpansionResult struct {
	Code          string        `json:"code"`
	SourceDisplay string        `json:"source_display"`
	Children      []Concept     `json:"children"`
	TotalCount    int           `json:"total_count"`
	FromCache     bool          `json:"from_cache"`
	Err           *ServiceError `json:"error,omitempty"`
}

// Client is the terminology server collaborator. A "no match" response is
// zero children, not an error.
type Client interface {
	Lookup(ctx context.Context, code string) (string, error)
	Expand(ctx context.Context, code string, includeInactive bool) (*ExpansionResult, error)
	GetDirectChildren(ctx context.Context, code string, includeInactive bool) ([]Concept, error)
}
