package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rlanders/taskmesh/internal/cpm"
	"github.com/rlanders/taskmesh/internal/graph"
	"github.com/rlanders/taskmesh/internal/store"
	"github.com/rlanders/taskmesh/internal/task"
)

func makeSnapshot() task.Snapshot {
	now := time.Now()
	mk := func(id, title string, status task.Status, hours float64, deps ...string) *task.Record {
		return &task.Record{
			ID:             id,
			Title:          title,
			Status:         status,
			DependsOn:      deps,
			EstimatedHours: task.Estimate(hours),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return task.Snapshot{
		"a": mk("a", "Design schema", task.StatusCompleted, 2),
		"b": mk("b", "Build API", task.StatusPending, 3, "a"),
		"c": mk("c", "Write docs", task.StatusBlocked, 1, "b"),
	}
}

func makeSchedule(t *testing.T, snap task.Snapshot) (*graph.Graph, *cpm.Schedule) {
	t.Helper()
	g := graph.FromSnapshot(snap)
	sched, err := cpm.Analyze(g)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return g, sched
}

func TestPrintTaskTable(t *testing.T) {
	snap := makeSnapshot()
	var buf bytes.Buffer
	PrintTaskTable(&buf, []*task.Record{snap["a"], snap["b"], snap["c"]})

	out := buf.String()
	for _, want := range []string{"Design schema", "Build API", "Write docs", "deps: a"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestPrintTaskTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintTaskTable(&buf, nil)
	if !strings.Contains(buf.String(), "no tasks") {
		t.Errorf("expected empty marker, got %q", buf.String())
	}
}

func TestPrintPlan(t *testing.T) {
	snap := makeSnapshot()
	_, sched := makeSchedule(t, snap)

	var buf bytes.Buffer
	PrintPlan(&buf, snap, sched)

	out := buf.String()
	if !strings.Contains(out, "6h total") {
		t.Errorf("expected 6h chain duration:\n%s", out)
	}
	if !strings.Contains(out, "a → b → c") {
		t.Errorf("expected critical path rendering:\n%s", out)
	}
	if !strings.Contains(out, "WAVE") {
		t.Errorf("expected wave breakdown:\n%s", out)
	}
	// c is still blocked, so its wave is waiting; the earlier waves are
	// ready to start.
	if !strings.Contains(out, "ready") || !strings.Contains(out, "waiting") {
		t.Errorf("expected wave readiness labels:\n%s", out)
	}
}

func TestPrintNotifications(t *testing.T) {
	now := time.Now()
	notes := []store.Notification{
		{ID: 1, TaskID: "a1b2c3d4", Type: "unblocked", Message: "Task a1b2c3d4 unblocked - dependencies completed", CreatedAt: now},
		{ID: 2, TaskID: "e5f6a7b8", Type: "unblocked", Message: "Task e5f6a7b8 unblocked - dependencies completed", CreatedAt: now, Read: true},
	}

	var buf bytes.Buffer
	PrintNotifications(&buf, notes)

	out := buf.String()
	for _, want := range []string{"#1", "#2", "[a1b2c3d4]", "[e5f6a7b8]", "dependencies completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("notifications missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	PrintNotifications(&buf, nil)
	if !strings.Contains(buf.String(), "no notifications") {
		t.Errorf("expected empty marker, got %q", buf.String())
	}
}

func TestPlanJSON(t *testing.T) {
	snap := makeSnapshot()
	_, sched := makeSchedule(t, snap)

	data, err := PlanJSON(snap, sched)
	if err != nil {
		t.Fatalf("plan json: %v", err)
	}

	var o struct {
		TotalDuration float64  `json:"total_duration"`
		CriticalPath  []string `json:"critical_path"`
		Tasks         []struct {
			TaskID string `json:"task_id"`
			Title  string `json:"title"`
			Slack  float64
		} `json:"tasks"`
	}
	if err := json.Unmarshal(data, &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if o.TotalDuration != 6 {
		t.Errorf("expected total 6, got %v", o.TotalDuration)
	}
	if len(o.Tasks) != 3 || o.Tasks[0].TaskID != "a" || o.Tasks[0].Title != "Design schema" {
		t.Errorf("unexpected tasks: %+v", o.Tasks)
	}
}

func TestRankBlocking(t *testing.T) {
	snap := makeSnapshot()
	g, sched := makeSchedule(t, snap)
	scores := cpm.BlockingScores(g, cpm.DefaultScoreWeights())

	rows := RankBlocking(snap, g, scores, sched)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// In a chain a←b←c the head blocks the most.
	if rows[0].TaskID != "a" {
		t.Errorf("expected a ranked first, got %s", rows[0].TaskID)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Score > rows[i-1].Score {
			t.Errorf("rows not sorted by score at %d", i)
		}
	}
	if !rows[0].IsCritical {
		t.Error("expected chain head marked critical")
	}

	var buf bytes.Buffer
	PrintBlocking(&buf, rows, 2)
	out := buf.String()
	if !strings.Contains(out, "Most blocking") {
		t.Errorf("missing header:\n%s", out)
	}
	if strings.Contains(out, "Write docs") {
		t.Errorf("limit 2 should drop the last row:\n%s", out)
	}
}

func TestDOT(t *testing.T) {
	snap := makeSnapshot()
	g := graph.FromSnapshot(snap)

	dot := DOT(g)
	if !strings.HasPrefix(dot, "digraph dependencies {") || !strings.HasSuffix(dot, "}") {
		t.Errorf("malformed DOT:\n%s", dot)
	}
	for _, want := range []string{
		`"a" [label="a\n(2h)"]`,
		`"b" -> "a";`,
		`"c" -> "b";`,
		"rankdir=TB;",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}
