package task

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Record is one task as persisted by the store. The graph and lifecycle
// layers consume snapshots of these records; they never own them.
type Record struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Status            Status     `json:"status"`
	Priority          int        `json:"priority"`
	Assignee          string     `json:"assignee,omitempty"`
	CreatedBy         string     `json:"created_by,omitempty"`
	DependsOn         []string   `json:"depends_on,omitempty"`
	EstimatedHours    *float64   `json:"estimated_hours,omitempty"`
	ActualHours       *float64   `json:"actual_hours,omitempty"`
	CompletionSummary string     `json:"completion_summary,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Weight returns the task's estimated hours, defaulting to 1.0 when no
// estimate was recorded. An explicit zero estimate is a legal milestone.
func (r *Record) Weight() float64 {
	if r.EstimatedHours == nil {
		return 1.0
	}
	return *r.EstimatedHours
}

// Snapshot is a point-in-time view of all tasks, keyed by id. Every graph
// or lifecycle operation works over one snapshot and never mutates shared
// state outside it.
type Snapshot map[string]*Record

// Estimate is a convenience for building records with an explicit estimate.
func Estimate(hours float64) *float64 {
	return &hours
}
