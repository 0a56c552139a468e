package graph

import (
	"sort"

	"github.com/rlanders/taskmesh/internal/task"
)

// FromSnapshot builds a graph from a task snapshot. Every task becomes a
// node weighted by its estimate; dependency ids that don't resolve to a
// task in the snapshot still become placeholder nodes with the default
// weight, so the graph layer never silently drops an edge. The lifecycle
// controller is responsible for flagging those unresolved ids.
func FromSnapshot(snap task.Snapshot) *Graph {
	g := New()
	for id, rec := range snap {
		g.AddNode(id, rec.Weight())
	}
	for id, rec := range snap {
		for _, dep := range rec.DependsOn {
			g.AddEdge(id, dep)
		}
	}
	return g
}

// AddNode adds a node with the given weight. Idempotent: re-adding an
// existing id updates its weight.
func (g *Graph) AddNode(id string, weight float64) {
	if _, ok := g.weights[id]; !ok {
		g.deps[id] = make(map[string]bool)
		g.rdeps[id] = make(map[string]bool)
	}
	g.weights[id] = weight
}

// AddEdge records that from depends on to, auto-creating either endpoint
// with the default weight if absent. No cycle check happens here; callers
// that need validation use ValidateNewEdge before committing an edge.
func (g *Graph) AddEdge(from, to string) {
	if !g.HasNode(from) {
		g.AddNode(from, DefaultWeight)
	}
	if !g.HasNode(to) {
		g.AddNode(to, DefaultWeight)
	}
	g.deps[from][to] = true
	g.rdeps[to][from] = true
}

// RemoveEdge deletes the dependency relation in both directions. No-op if
// the edge is absent.
func (g *Graph) RemoveEdge(from, to string) {
	if set, ok := g.deps[from]; ok {
		delete(set, to)
	}
	if set, ok := g.rdeps[to]; ok {
		delete(set, from)
	}
}

// HasNode reports whether id exists in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.weights[id]
	return ok
}

// HasEdge reports whether from depends directly on to.
func (g *Graph) HasEdge(from, to string) bool {
	return g.deps[from][to]
}

// Weight returns the node's weight, or the default for unknown ids.
func (g *Graph) Weight(id string) float64 {
	if w, ok := g.weights[id]; ok {
		return w
	}
	return DefaultWeight
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.weights)
}

// Nodes returns all node ids in lexicographic order.
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.weights))
	for id := range g.weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependencies returns the direct dependencies of id, sorted. Unknown ids
// yield an empty slice, never an error.
func (g *Graph) Dependencies(id string) []string {
	return sortedKeys(g.deps[id])
}

// Dependents returns the tasks that directly depend on id, sorted.
func (g *Graph) Dependents(id string) []string {
	return sortedKeys(g.rdeps[id])
}

// AllDependencies returns the transitive dependency closure of id,
// excluding id itself. Traversal uses an explicit stack so deep chains
// can't blow the call stack.
func (g *Graph) AllDependencies(id string) []string {
	return g.closure(id, g.deps)
}

// AllDependents returns every task that transitively depends on id,
// excluding id itself.
func (g *Graph) AllDependents(id string) []string {
	return g.closure(id, g.rdeps)
}

func (g *Graph) closure(id string, adj map[string]map[string]bool) []string {
	seen := make(map[string]bool)
	stack := sortedKeys(adj[id])
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, sortedKeys(adj[cur])...)
	}
	return sortedKeys(seen)
}

// Roots returns the nodes with no dependencies: nothing blocks them.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.weights {
		if len(g.deps[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns the nodes with no dependents: nothing waits on them.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id := range g.weights {
		if len(g.rdeps[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
