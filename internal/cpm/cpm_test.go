package cpm

import (
	"math"
	"reflect"
	"testing"

	"github.com/rlanders/taskmesh/internal/graph"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestTopoSort_LinearChain(t *testing.T) {
	// c depends on b depends on a
	g := graph.New()
	g.AddEdge("b", "a")
	g.AddEdge("c", "b")

	order, err := TopoSort(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", order)
	}
}

func TestTopoSort_DependenciesPrecedeDependents(t *testing.T) {
	g := graph.New()
	g.AddEdge("d", "b")
	g.AddEdge("d", "c")
	g.AddEdge("b", "a")
	g.AddEdge("c", "a")
	g.AddEdge("f", "e")

	order, err := TopoSort(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 6 {
		t.Fatalf("expected 6 nodes in order, got %v", order)
	}

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	for _, id := range g.Nodes() {
		for _, dep := range g.Dependencies(id) {
			if index[dep] >= index[id] {
				t.Errorf("dependency %s must precede %s in %v", dep, id, order)
			}
		}
	}
}

func TestTopoSort_DeterministicTieBreak(t *testing.T) {
	g := graph.New()
	for _, id := range []string{"m", "a", "z", "k"} {
		g.AddNode(id, 1)
	}

	first, err := TopoSort(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, []string{"a", "k", "m", "z"}) {
		t.Errorf("expected lexicographic order for independent nodes, got %v", first)
	}
	second, _ := TopoSort(g)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected reproducible order, got %v then %v", first, second)
	}
}

func TestTopoSort_CycleFails(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	if order, err := TopoSort(g); err == nil {
		t.Fatalf("expected cycle error, got order %v", order)
	}
}

func TestTopoSort_Empty(t *testing.T) {
	order, err := TopoSort(graph.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected empty order, got %v", order)
	}
}

func TestFindCriticalPath_LinearChain(t *testing.T) {
	// c depends on b depends on a; weights 2.0 / 3.0 / 1.0
	g := graph.New()
	g.AddNode("a", 2.0)
	g.AddNode("b", 3.0)
	g.AddNode("c", 1.0)
	g.AddEdge("b", "a")
	g.AddEdge("c", "b")

	path, total := FindCriticalPath(g)
	if !reflect.DeepEqual(path, []string{"a", "b", "c"}) {
		t.Errorf("expected path [a b c], got %v", path)
	}
	if !almostEqual(total, 6.0) {
		t.Errorf("expected total 6.0, got %v", total)
	}
}

func TestFindCriticalPath_DiamondTakesHeavierBranch(t *testing.T) {
	// b and c depend on a; d depends on b and c. Weights a=2 b=3 c=5 d=4.
	g := graph.New()
	g.AddNode("a", 2)
	g.AddNode("b", 3)
	g.AddNode("c", 5)
	g.AddNode("d", 4)
	g.AddEdge("b", "a")
	g.AddEdge("c", "a")
	g.AddEdge("d", "b")
	g.AddEdge("d", "c")

	path, total := FindCriticalPath(g)
	if !almostEqual(total, 11.0) {
		t.Errorf("expected total 11.0 through the heavier branch, got %v", total)
	}
	if !reflect.DeepEqual(path, []string{"a", "c", "d"}) {
		t.Errorf("expected path [a c d], got %v", path)
	}

	// Path weight must equal the sum of its nodes' weights.
	sum := 0.0
	for _, id := range path {
		sum += g.Weight(id)
	}
	if !almostEqual(sum, total) {
		t.Errorf("path weights sum to %v but total is %v", sum, total)
	}
}

func TestFindCriticalPath_CycleIsDegenerate(t *testing.T) {
	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	path, total := FindCriticalPath(g)
	if len(path) != 0 || total != 0 {
		t.Errorf("expected ([], 0) for cyclic graph, got (%v, %v)", path, total)
	}
}

func TestFindCriticalPath_Empty(t *testing.T) {
	path, total := FindCriticalPath(graph.New())
	if len(path) != 0 || total != 0 {
		t.Errorf("expected ([], 0) for empty graph, got (%v, %v)", path, total)
	}
}

func TestFindCriticalPath_SingleNode(t *testing.T) {
	g := graph.New()
	g.AddNode("solo", 2.5)

	path, total := FindCriticalPath(g)
	if !reflect.DeepEqual(path, []string{"solo"}) {
		t.Errorf("expected path [solo], got %v", path)
	}
	if !almostEqual(total, 2.5) {
		t.Errorf("expected total 2.5, got %v", total)
	}
}

func TestFindCriticalPath_ZeroWeightMilestones(t *testing.T) {
	// Zero-weight milestones are legal and contribute nothing.
	g := graph.New()
	g.AddNode("start", 0)
	g.AddNode("work", 4)
	g.AddNode("done", 0)
	g.AddEdge("work", "start")
	g.AddEdge("done", "work")

	path, total := FindCriticalPath(g)
	if !almostEqual(total, 4.0) {
		t.Errorf("expected total 4.0, got %v", total)
	}
	if !reflect.DeepEqual(path, []string{"start", "work", "done"}) {
		t.Errorf("expected path [start work done], got %v", path)
	}
}

func TestFindCriticalPath_AllZeroWeights(t *testing.T) {
	// A chain of pure milestones still yields the full chain, not a
	// degenerate single node.
	g := graph.New()
	g.AddNode("m1", 0)
	g.AddNode("m2", 0)
	g.AddNode("m3", 0)
	g.AddEdge("m2", "m1")
	g.AddEdge("m3", "m2")

	path, total := FindCriticalPath(g)
	if total != 0 {
		t.Errorf("expected total 0, got %v", total)
	}
	if !reflect.DeepEqual(path, []string{"m1", "m2", "m3"}) {
		t.Errorf("expected path [m1 m2 m3], got %v", path)
	}
}

func TestBlockingScores_BottleneckRanksHighest(t *testing.T) {
	// "hub" blocks three downstream tasks; "side" blocks nothing.
	g := graph.New()
	g.AddNode("hub", 2)
	g.AddNode("side", 2)
	g.AddEdge("x", "hub")
	g.AddEdge("y", "hub")
	g.AddEdge("z", "y")

	scores := BlockingScores(g, DefaultScoreWeights())
	if len(scores) != 5 {
		t.Fatalf("expected a score per node, got %d", len(scores))
	}
	if scores["hub"] <= scores["side"] {
		t.Errorf("expected hub (%v) to outrank side (%v)", scores["hub"], scores["side"])
	}
	if scores["hub"] <= scores["x"] {
		t.Errorf("expected hub (%v) to outrank leaf x (%v)", scores["hub"], scores["x"])
	}
}

func TestBlockingScores_CriticalPathBonus(t *testing.T) {
	// Two parallel chains; the heavier one is critical and its members
	// should carry the doubled bonus term.
	g := graph.New()
	g.AddNode("a1", 5)
	g.AddNode("a2", 5)
	g.AddNode("b1", 1)
	g.AddNode("b2", 1)
	g.AddEdge("a2", "a1")
	g.AddEdge("b2", "b1")

	w := DefaultScoreWeights()
	scores := BlockingScores(g, w)

	// a1 and b1 have identical structure; the difference must be exactly
	// the critical bonus plus the duration gap.
	structural := scores["a1"] - scores["b1"]
	expected := (5.0-1.0)*w.Duration + w.CriticalBonus
	if !almostEqual(structural, expected) {
		t.Errorf("expected score gap %v, got %v", expected, structural)
	}
}
