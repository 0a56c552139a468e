package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a proposed dependency that would close a cycle. Path
// holds one concrete traversable loop, first and last element identical.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " → "))
}

// SelfDependencyError reports a task depending on itself. Kept distinct
// from CycleError so the CLI can give the short diagnosis instead of a
// one-node cycle path.
type SelfDependencyError struct {
	ID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("self-dependency detected: %s cannot depend on itself", e.ID)
}

// DetectCycle returns one cycle path if the graph contains a cycle, or nil
// if it is acyclic. The path starts and ends on the same node.
//
// DFS with coloring: white (unvisited), gray (in progress), black (done).
// The traversal keeps its own frame stack instead of recursing, so graphs
// with very long dependency chains don't hit stack-depth limits.
func (g *Graph) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(g.weights))
	parent := make(map[string]string)

	type frame struct {
		node string
		next []string // neighbors not yet explored
	}

	for _, start := range g.Nodes() {
		if color[start] != white {
			continue
		}
		color[start] = gray
		stack := []frame{{node: start, next: g.Dependencies(start)}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			n := top.next[0]
			top.next = top.next[1:]

			switch color[n] {
			case gray:
				// Found a cycle — walk parents back to n to reconstruct it.
				cycle := []string{n, top.node}
				cur := top.node
				for cur != n {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			case white:
				parent[n] = top.node
				color[n] = gray
				stack = append(stack, frame{node: n, next: g.Dependencies(n)})
			}
		}
	}
	return nil
}

// SelfLoops returns every node with an edge to itself, sorted. Checked
// separately from DetectCycle because it is the most common user error and
// the cheapest to diagnose.
func (g *Graph) SelfLoops() []string {
	var loops []string
	for id, set := range g.deps {
		if set[id] {
			loops = append(loops, id)
		}
	}
	sort.Strings(loops)
	return loops
}

// ValidateNewEdge checks whether adding "from depends on to" would keep the
// graph acyclic. It returns nil when the edge is safe, *SelfDependencyError
// when from == to, or *CycleError with the concrete path otherwise.
//
// The check is side-effect-free: the edge (and any nodes auto-created for
// it) are removed before returning, whatever the verdict.
func (g *Graph) ValidateNewEdge(from, to string) error {
	if from == to {
		return &SelfDependencyError{ID: from}
	}

	hadFrom := g.HasNode(from)
	hadTo := g.HasNode(to)
	hadEdge := g.HasEdge(from, to)

	g.AddEdge(from, to)
	cycle := g.DetectCycle()

	if !hadEdge {
		g.RemoveEdge(from, to)
	}
	if !hadFrom {
		g.removeNode(from)
	}
	if !hadTo {
		g.removeNode(to)
	}

	if cycle != nil {
		return &CycleError{Path: cycle}
	}
	return nil
}

// removeNode drops a node that has no remaining edges. Only used to undo
// auto-creation during validation.
func (g *Graph) removeNode(id string) {
	if len(g.deps[id]) == 0 && len(g.rdeps[id]) == 0 {
		delete(g.weights, id)
		delete(g.deps, id)
		delete(g.rdeps, id)
	}
}
