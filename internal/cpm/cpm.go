package cpm

import (
	"fmt"
	"sort"

	"github.com/rlanders/taskmesh/internal/graph"
)

// TopoSort orders all nodes so that every dependency precedes its
// dependents, using Kahn's algorithm. Ties between simultaneously ready
// nodes break lexicographically so output is reproducible across runs.
// Returns an error if the graph contains a cycle.
func TopoSort(g *graph.Graph) ([]string, error) {
	inDegree := make(map[string]int, g.NodeCount())
	for _, id := range g.Nodes() {
		inDegree[id] = len(g.Dependencies(id))
	}

	// Seed with nodes that have no unresolved dependencies. Nodes() is
	// already sorted, which gives the deterministic tie-break.
	var queue []string
	for _, id := range g.Nodes() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, g.NodeCount())
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for _, dep := range g.Dependents(node) {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				newReady = append(newReady, dep)
			}
		}
		sort.Strings(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != g.NodeCount() {
		return nil, fmt.Errorf("topological sort failed: graph has a cycle (%d of %d tasks sorted)", len(order), g.NodeCount())
	}
	return order, nil
}

// FindCriticalPath computes the maximum-weight path through the DAG: the
// ordered task ids and the cumulative weight in hours. A node's weight is
// work done while occupying that node, so it is counted exactly once where
// the path passes through.
//
// A graph with a cycle has no defined critical path; that case returns an
// empty path and zero weight rather than an error, since edge validation
// is supposed to have kept the graph acyclic in the first place.
func FindCriticalPath(g *graph.Graph) ([]string, float64) {
	if g.DetectCycle() != nil {
		return nil, 0
	}
	order, err := TopoSort(g)
	if err != nil {
		return nil, 0
	}

	distance := make(map[string]float64, len(order))
	predecessor := make(map[string]string, len(order))

	for _, node := range order {
		candidate := distance[node] + g.Weight(node)
		for _, dep := range g.Dependents(node) {
			// >= so a zero-weight milestone still records a predecessor:
			// with strict > a chain of zero-weight nodes never links up.
			if candidate >= distance[dep] {
				distance[dep] = candidate
				predecessor[dep] = node
			}
		}
	}

	// The path ends at the node maximizing distance + its own weight, so
	// the final task's duration is attributed too. Ties resolve to the
	// later node in topo order, keeping a zero-weight milestone at the
	// end of a chain on the path.
	var endNode string
	maxDistance := 0.0
	for _, node := range order {
		if total := distance[node] + g.Weight(node); total >= maxDistance {
			maxDistance = total
			endNode = node
		}
	}
	if endNode == "" {
		return nil, 0
	}

	path := []string{endNode}
	for {
		prev, ok := predecessor[path[len(path)-1]]
		if !ok {
			break
		}
		path = append(path, prev)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, maxDistance
}

// BlockingScores ranks every node by how much delaying it would delay the
// project: direct dependents weighted by w.Direct, the transitive
// dependent count by w.Transitive, the node's own duration by w.Duration,
// and a critical-path membership multiplier on w.CriticalBonus. Higher
// scores mark bottleneck tasks.
func BlockingScores(g *graph.Graph, w ScoreWeights) map[string]float64 {
	criticalPath, _ := FindCriticalPath(g)
	onPath := make(map[string]bool, len(criticalPath))
	for _, id := range criticalPath {
		onPath[id] = true
	}

	scores := make(map[string]float64, g.NodeCount())
	for _, node := range g.Nodes() {
		direct := float64(len(g.Dependents(node)))
		downstream := float64(len(g.AllDependents(node)))

		multiplier := 1.0
		if onPath[node] {
			multiplier = 2.0
		}

		scores[node] = direct*w.Direct +
			downstream*w.Transitive +
			g.Weight(node)*w.Duration +
			multiplier*w.CriticalBonus
	}
	return scores
}
