package graph

// Graph is a directed dependency graph over task ids with per-node weights.
// An edge (from, to) means "from depends on to": to must complete before
// from can proceed. Edges are indexed in both directions for O(1) lookups.
//
// A Graph is built fresh from a task snapshot per operation and is not safe
// for concurrent use.
type Graph struct {
	weights map[string]float64
	deps    map[string]map[string]bool // node -> tasks it depends on
	rdeps   map[string]map[string]bool // node -> tasks that depend on it
}

// DefaultWeight is the estimated effort (hours) assumed for nodes created
// without an explicit weight.
const DefaultWeight = 1.0

// New returns an empty dependency graph.
func New() *Graph {
	return &Graph{
		weights: make(map[string]float64),
		deps:    make(map[string]map[string]bool),
		rdeps:   make(map[string]map[string]bool),
	}
}
