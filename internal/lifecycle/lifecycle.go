package lifecycle

import (
	"fmt"
	"sort"

	"github.com/rlanders/taskmesh/internal/graph"
	"github.com/rlanders/taskmesh/internal/task"
)

// Controller bridges persisted task state and the graph algorithms. It
// works over one snapshot per invocation: the caller reads current task
// state, runs a decision, and persists the returned transitions inside the
// same transaction that produced the snapshot. The controller itself does
// no I/O and holds no state between invocations.
type Controller struct {
	snap task.Snapshot
}

// New creates a Controller over the given snapshot. The controller mutates
// the snapshot's statuses as it computes transitions; callers that need
// the original should pass a copy.
func New(snap task.Snapshot) *Controller {
	return &Controller{snap: snap}
}

// Warning flags a data-integrity problem found while evaluating
// transitions. A warning never aborts the operation; the affected task
// simply stays blocked until the problem is repaired.
type Warning struct {
	TaskID       string
	DependencyID string
}

func (w Warning) String() string {
	return fmt.Sprintf("task %s depends on unknown task %s; it will stay blocked until the dependency is resolved", w.TaskID, w.DependencyID)
}

// InitialStatus returns the status a freshly created task starts in:
// blocked when it has dependencies, pending otherwise.
func InitialStatus(dependsOn []string) task.Status {
	if len(dependsOn) > 0 {
		return task.StatusBlocked
	}
	return task.StatusPending
}

// Graph builds the dependency graph for the controller's snapshot.
func (c *Controller) Graph() *graph.Graph {
	return graph.FromSnapshot(c.snap)
}

// ValidateEdge checks whether "from depends on to" can be added without
// creating a cycle, against the current snapshot. Returns nil on accept,
// or *graph.SelfDependencyError / *graph.CycleError on reject. The
// snapshot is not modified.
func (c *Controller) ValidateEdge(from, to string) error {
	return c.Graph().ValidateNewEdge(from, to)
}

// Complete marks the task completed in the snapshot and returns the ids of
// blocked dependents that become pending because every one of their
// dependencies — not just the one that completed — is now done. Dependents
// whose dependency lists reference ids missing from the snapshot are
// reported as warnings and stay blocked.
func (c *Controller) Complete(id string) (unblocked []string, warnings []Warning, err error) {
	rec, ok := c.snap[id]
	if !ok {
		return nil, nil, fmt.Errorf("complete task: unknown task %s", id)
	}
	rec.Status = task.StatusCompleted

	g := c.Graph()
	for _, depID := range g.Dependents(id) {
		dependent, ok := c.snap[depID]
		if !ok || dependent.Status != task.StatusBlocked {
			continue
		}
		satisfied := true
		for _, need := range dependent.DependsOn {
			needRec, known := c.snap[need]
			if !known {
				warnings = append(warnings, Warning{TaskID: depID, DependencyID: need})
				satisfied = false
				continue
			}
			if needRec.Status != task.StatusCompleted {
				satisfied = false
			}
		}
		if satisfied {
			dependent.Status = task.StatusPending
			unblocked = append(unblocked, depID)
		}
	}

	sort.Strings(unblocked)
	return unblocked, warnings, nil
}

// Unresolved returns a warning for every dependency id in the snapshot
// that doesn't resolve to a known task, sorted by dependent id. Used by
// integrity checks and the CLI doctor output.
func (c *Controller) Unresolved() []Warning {
	var warnings []Warning
	ids := make([]string, 0, len(c.snap))
	for id := range c.snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, need := range c.snap[id].DependsOn {
			if _, ok := c.snap[need]; !ok {
				warnings = append(warnings, Warning{TaskID: id, DependencyID: need})
			}
		}
	}
	return warnings
}
