// Package lineage rebuilds parent→child SNOMED hierarchy edges over the
// descendant set of a prior expansion, subject to depth, API-call and
// node caps.
package lineage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/carelens/emisx/terminology"
)

// Trace caps. Real hierarchies under one root are shallow; the caps exist
// so a mistraced root cannot hammer the terminology server.
const (
	DefaultMaxDepth    = 10
	DefaultMaxAPICalls = 100
	DefaultMaxNodes    = 500
)

// Config bounds a trace. GUIDFor optionally resolves a SNOMED code back
// to its EMIS GUID for display alongside the tree.
type Config struct {
	MaxDepth    int
	MaxAPICalls int
	MaxNodes    int
	GUIDFor     func(code string) string
}

// Tracer discovers direct parent/child edges via a terminology client.
type Tracer struct {
	client terminology.Client
	config Config
	log    zerolog.Logger
}

// NewTracer creates a Tracer; zero config values take the defaults.
func NewTracer(client terminology.Client, config Config, log zerolog.Logger) *Tracer {
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	if config.MaxAPICalls <= 0 {
		config.MaxAPICalls = DefaultMaxAPICalls
	}
	if config.MaxNodes <= 0 {
		config.MaxNodes = DefaultMaxNodes
	}
	return &Tracer{client: client, config: config, log: log}
}

// traceState is the mutable state of one TraceLineage call.
type traceState struct {
	descendants     map[string]terminology.Concept
	includeInactive bool

	apiCalls   int
	nodeCount  int
	pruned     int
	nodeByCode map[string]*Node
	shared     map[string]bool

	depthCapped bool
	apiCapped   bool
	nodeCapped  bool
}

// TraceLineage rebuilds the hierarchy under rootCode, restricted to the
// known descendant set. An empty descendant set is an explicit error, not
// an empty-but-successful tree.
func (t *Tracer) TraceLineage(ctx context.Context, rootCode, rootDisplay string, descendants map[string]terminology.Concept, includeInactive bool) (*TraceResult, error) {
	if len(descendants) == 0 {
		return nil, terminology.NewServiceError(terminology.CategoryNoMatches,
			fmt.Errorf("no descendants found for code %s; expand it first", rootCode))
	}

	state := &traceState{
		descendants:     descendants,
		includeInactive: includeInactive,
		nodeByCode:      make(map[string]*Node),
		shared:          make(map[string]bool),
	}

	root := &Node{
		Code:        rootCode,
		Display:     rootDisplay,
		EMISGUID:    t.guidFor(rootCode),
		LineagePath: rootCode,
	}

	t.expand(ctx, root, state)

	result := &TraceResult{
		Root:               root,
		NodeCount:          state.nodeCount,
		APICalls:           state.apiCalls,
		PrunedBranches:     state.pruned,
		SharedLineageCodes: sortedKeys(state.shared),
	}

	uncovered := 0
	for code := range descendants {
		if _, ok := state.nodeByCode[code]; !ok && code != rootCode {
			uncovered++
		}
	}
	if uncovered > 0 {
		if reason := state.capReason(t.config, uncovered); reason != "" {
			result.Truncated = true
			result.TruncationReason = reason
		}
	}

	t.log.Debug().
		Str("root", rootCode).
		Int("nodes", result.NodeCount).
		Int("apiCalls", result.APICalls).
		Bool("truncated", result.Truncated).
		Msg("Traced lineage")

	return result, nil
}

func (s *traceState) capReason(config Config, uncovered int) string {
	var reasons []string
	if s.depthCapped {
		reasons = append(reasons, fmt.Sprintf("maximum depth %d reached", config.MaxDepth))
	}
	if s.apiCapped {
		reasons = append(reasons, fmt.Sprintf("API call budget of %d exhausted", config.MaxAPICalls))
	}
	if s.nodeCapped {
		reasons = append(reasons, fmt.Sprintf("node limit of %d reached", config.MaxNodes))
	}
	if len(reasons) == 0 {
		return ""
	}
	return fmt.Sprintf("%s with %d known descendants uncovered", strings.Join(reasons, "; "), uncovered)
}

// expand discovers the children of node. A lookup failure prunes this
// branch only; siblings and other branches continue.
func (t *Tracer) expand(ctx context.Context, node *Node, state *traceState) {
	if node.Depth >= t.config.MaxDepth {
		state.depthCapped = true
		return
	}
	if state.apiCalls >= t.config.MaxAPICalls {
		state.apiCapped = true
		return
	}

	state.apiCalls++
	children, err := t.client.GetDirectChildren(ctx, node.Code, state.includeInactive)
	if err != nil {
		state.pruned++
		t.log.Warn().Err(err).Str("code", node.Code).Msg("Pruning branch after child lookup failure")
		return
	}

	for _, child := range children {
		known, ok := state.descendants[child.Code]
		if !ok {
			continue
		}

		path := node.LineagePath + " > " + child.Code

		if existing, seen := state.nodeByCode[child.Code]; seen {
			// Reachable via more than one parent: the first parent keeps
			// the node; later paths are recorded flat.
			if !existing.SharedLineage {
				existing.SharedLineage = true
				existing.AllPaths = []string{existing.LineagePath}
			}
			existing.AllPaths = append(existing.AllPaths, path)
			state.shared[child.Code] = true
			continue
		}

		if state.nodeCount >= t.config.MaxNodes {
			state.nodeCapped = true
			return
		}

		display := child.Display
		if display == "" {
			display = known.Display
		}
		childNode := &Node{
			Code:             child.Code,
			Display:          display,
			EMISGUID:         t.guidFor(child.Code),
			Inactive:         child.Inactive,
			Depth:            node.Depth + 1,
			DirectParentCode: node.Code,
			LineagePath:      path,
		}
		state.nodeByCode[child.Code] = childNode
		state.nodeCount++
		node.Children = append(node.Children, childNode)

		t.expand(ctx, childNode, state)
	}
}

func (t *Tracer) guidFor(code string) string {
	if t.config.GUIDFor == nil {
		return ""
	}
	return t.config.GUIDFor(code)
}

// TraceFullLineage traces every parent of a batch expansion and
// aggregates node counts, shared-lineage codes and per-parent truncation
// reasons. A failed parent is annotated, not fatal to its siblings.
func (t *Tracer) TraceFullLineage(ctx context.Context, expansions map[string]*terminology.ExpansionResult, includeInactive bool) *FullTraceResult {
	full := &FullTraceResult{
		Trees:             make(map[string]*TraceResult),
		TruncationReasons: make(map[string]string),
		Errors:            make(map[string]string),
	}
	sharedUnion := make(map[string]bool)

	parents := make([]string, 0, len(expansions))
	for parent := range expansions {
		parents = append(parents, parent)
	}
	slices.Sort(parents)

	for _, parent := range parents {
		expansion := expansions[parent]
		if expansion == nil {
			continue
		}
		if expansion.Err != nil {
			full.Errors[parent] = expansion.Err.Error()
			continue
		}

		descendants := make(map[string]terminology.Concept, len(expansion.Children))
		for _, child := range expansion.Children {
			descendants[child.Code] = child
		}

		result, err := t.TraceLineage(ctx, parent, expansion.SourceDisplay, descendants, includeInactive)
		if err != nil {
			full.Errors[parent] = err.Error()
			continue
		}

		full.Trees[parent] = result
		full.TotalNodes += result.NodeCount
		full.TotalAPICalls += result.APICalls
		for _, code := range result.SharedLineageCodes {
			sharedUnion[code] = true
		}
		if result.Truncated {
			full.TruncationReasons[parent] = result.TruncationReason
		}
	}

	full.SharedLineageCodes = sortedKeys(sharedUnion)
	return full
}

// Flatten converts a trace result into parent→child export rows.
func Flatten(result *TraceResult) []FlatEdge {
	var edges []FlatEdge
	var walk func(node *Node)
	walk = func(node *Node) {
		for _, child := range node.Children {
			edges = append(edges, FlatEdge{
				ParentCode: node.Code,
				Code:       child.Code,
				Display:    child.Display,
			})
			walk(child)
		}
	}
	if result != nil && result.Root != nil {
		walk(result.Root)
	}
	return edges
}

// FlatEdge is one parent→child edge.
type FlatEdge struct {
	ParentCode string
	Code       string
	Display    string
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
