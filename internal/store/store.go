package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/rlanders/taskmesh/internal/lifecycle"
	"github.com/rlanders/taskmesh/internal/task"
)

// Store is the SQLite-backed task store shared by every agent working in
// the same checkout. Edge validation and edge persistence happen inside
// the same IMMEDIATE transaction, so two agents cannot commit edges that
// are individually acyclic but jointly form a cycle: the second writer
// re-validates against the state the first one committed.
type Store struct {
	pool   *sqlitex.Pool
	logger *log.Logger
	agent  string
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. Use ":memory:" in tests.
	Path string

	// Agent identifies the calling agent; recorded as created_by on new
	// tasks. Optional.
	Agent string

	// PoolSize defaults to 4 when zero or negative. SQLite serializes
	// writes anyway; extra connections only help concurrent readers.
	PoolSize int

	// Logger receives operational and integrity messages. Defaults to
	// the package default logger.
	Logger *log.Logger
}

// Open opens (creating if needed) the task database and applies the
// schema. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	if cfg.Path == ":memory:" {
		// Each in-memory connection is a separate database.
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA synchronous=NORMAL",
				"PRAGMA busy_timeout=5000",
				"PRAGMA foreign_keys=ON",
			} {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("store: %s: %w", pragma, err)
				}
			}
			if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
				return fmt.Errorf("store: apply schema: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Path, err)
	}

	logger.Debug("task store opened", "path", cfg.Path, "pool_size", poolSize)
	return &Store{pool: pool, logger: logger, agent: cfg.Agent}, nil
}

// Close closes all database connections.
func (s *Store) Close() error {
	return s.pool.Close()
}

// NewTask holds the caller-supplied fields for task creation.
type NewTask struct {
	Title          string
	Description    string
	Priority       int
	Assignee       string
	DependsOn      []string
	EstimatedHours *float64
}

// newID returns an 8-hex-char task id.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// CreateTask inserts a task. Dependencies must reference existing tasks,
// and every dependency edge is validated against the committed graph
// inside the same transaction that persists it. The initial status is
// blocked when the task has dependencies, pending otherwise.
func (s *Store) CreateTask(ctx context.Context, nt NewTask) (rec *task.Record, err error) {
	if strings.TrimSpace(nt.Title) == "" {
		return nil, fmt.Errorf("create task: title is required")
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, err
	}
	defer endFn(&err)

	snap, err := readSnapshot(conn)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, dep := range nt.DependsOn {
		if _, ok := snap[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("create task: dependencies not found: %s", strings.Join(missing, ", "))
	}

	id := newID()
	ctrl := lifecycle.New(snap)
	for _, dep := range nt.DependsOn {
		if err := ctrl.ValidateEdge(id, dep); err != nil {
			return nil, fmt.Errorf("create task: %w", err)
		}
	}

	now := time.Now().UTC()
	rec = &task.Record{
		ID:             id,
		Title:          nt.Title,
		Description:    nt.Description,
		Status:         lifecycle.InitialStatus(nt.DependsOn),
		Priority:       nt.Priority,
		Assignee:       nt.Assignee,
		CreatedBy:      s.agent,
		DependsOn:      append([]string(nil), nt.DependsOn...),
		EstimatedHours: nt.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO tasks (id, title, description, status, priority, assignee,
		                   created_by, estimated_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				rec.ID, rec.Title, rec.Description, string(rec.Status),
				rec.Priority, rec.Assignee, rec.CreatedBy, nullFloat(rec.EstimatedHours),
				formatTime(now), formatTime(now),
			},
		})
	if err != nil {
		return nil, fmt.Errorf("create task: insert: %w", err)
	}

	for _, dep := range nt.DependsOn {
		if err := insertDependency(conn, rec.ID, dep); err != nil {
			return nil, err
		}
	}

	s.logger.Info("task created", "id", rec.ID, "status", rec.Status, "deps", len(rec.DependsOn))
	return rec, nil
}

// AddDependency records that taskID depends on dependsOn, validating the
// edge against the committed graph in the same transaction. A pending
// task picking up an incomplete dependency flips back to blocked.
func (s *Store) AddDependency(ctx context.Context, taskID, dependsOn string) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endFn(&err)

	snap, err := readSnapshot(conn)
	if err != nil {
		return err
	}
	rec, ok := snap[taskID]
	if !ok {
		return fmt.Errorf("add dependency: unknown task %s", taskID)
	}
	dep, ok := snap[dependsOn]
	if !ok {
		return fmt.Errorf("add dependency: unknown task %s", dependsOn)
	}

	if err := lifecycle.New(snap).ValidateEdge(taskID, dependsOn); err != nil {
		return err
	}
	if err := insertDependency(conn, taskID, dependsOn); err != nil {
		return err
	}

	if rec.Status == task.StatusPending && dep.Status != task.StatusCompleted {
		if err := setStatus(conn, taskID, task.StatusBlocked); err != nil {
			return err
		}
		s.logger.Info("task re-blocked by new dependency", "id", taskID, "depends_on", dependsOn)
	}
	return nil
}

// RemoveDependency drops the edge. No-op if absent. The dependent's status
// is not recomputed here; completion drives unblocking.
func (s *Store) RemoveDependency(ctx context.Context, taskID, dependsOn string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	return sqlitex.Execute(conn,
		`DELETE FROM dependencies WHERE task_id = ? AND depends_on = ?`,
		&sqlitex.ExecOptions{Args: []any{taskID, dependsOn}})
}

// CompleteResult reports what a completion changed.
type CompleteResult struct {
	Unblocked []string
	Warnings  []lifecycle.Warning
}

// Complete marks the task completed and, in the same transaction, flips
// every blocked dependent whose dependencies are now all completed to
// pending, recording one unblock notification per transition.
func (s *Store) Complete(ctx context.Context, id, summary string, actualHours *float64) (res CompleteResult, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return res, err
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return res, err
	}
	defer endFn(&err)

	snap, err := readSnapshot(conn)
	if err != nil {
		return res, err
	}

	unblocked, warnings, err := lifecycle.New(snap).Complete(id)
	if err != nil {
		return res, err
	}
	res.Unblocked = unblocked
	res.Warnings = warnings

	now := time.Now().UTC()
	err = sqlitex.Execute(conn, `
		UPDATE tasks
		SET status = ?, completed_at = ?, updated_at = ?,
		    completion_summary = ?, actual_hours = COALESCE(?, actual_hours)
		WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(task.StatusCompleted), formatTime(now), formatTime(now),
				summary, nullFloat(actualHours), id,
			},
		})
	if err != nil {
		return res, fmt.Errorf("complete task: %w", err)
	}

	for _, ub := range unblocked {
		if err := setStatus(conn, ub, task.StatusPending); err != nil {
			return res, err
		}
		msg := fmt.Sprintf("Task %s unblocked - dependencies completed", ub)
		if err := s.insertNotification(conn, ub, "unblocked", msg, snap[ub].Assignee, now); err != nil {
			return res, err
		}
	}

	for _, w := range warnings {
		s.logger.Warn("dependency integrity", "task", w.TaskID, "missing", w.DependencyID)
	}
	s.logger.Info("task completed", "id", id, "unblocked", len(unblocked))
	return res, nil
}

// UpdateStatus sets an agent-driven status. Completion must go through
// Complete so unblocking and notifications happen.
func (s *Store) UpdateStatus(ctx context.Context, id string, status task.Status) error {
	if !status.Valid() {
		return fmt.Errorf("update status: invalid status %q", status)
	}
	if status == task.StatusCompleted {
		return fmt.Errorf("update status: use Complete to finish a task")
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if exists, err := taskExists(conn, id); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("update status: unknown task %s", id)
	}
	return setStatus(conn, id, status)
}

// Get returns one task with its dependency list, or an error if absent.
func (s *Store) Get(ctx context.Context, id string) (*task.Record, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := snap[id]
	if !ok {
		return nil, fmt.Errorf("get task: unknown task %s", id)
	}
	return rec, nil
}

// List returns tasks ordered by creation time, optionally filtered by
// status ("" means all).
func (s *Store) List(ctx context.Context, status task.Status) ([]*task.Record, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var recs []*task.Record
	for _, rec := range snap {
		if status == "" || rec.Status == status {
			recs = append(recs, rec)
		}
	}
	sortRecords(recs)
	return recs, nil
}

// Snapshot reads the full task table with dependencies, the input the
// graph and lifecycle layers consume.
func (s *Store) Snapshot(ctx context.Context) (task.Snapshot, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)
	return readSnapshot(conn)
}

func readSnapshot(conn *sqlite.Conn) (task.Snapshot, error) {
	snap := make(task.Snapshot)
	err := sqlitex.Execute(conn, `
		SELECT id, title, description, status, priority, assignee, created_by,
		       estimated_hours, actual_hours, completion_summary,
		       created_at, updated_at, completed_at
		FROM tasks`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rec := &task.Record{
					ID:                stmt.ColumnText(0),
					Title:             stmt.ColumnText(1),
					Description:       stmt.ColumnText(2),
					Status:            task.Status(stmt.ColumnText(3)),
					Priority:          stmt.ColumnInt(4),
					Assignee:          stmt.ColumnText(5),
					CreatedBy:         stmt.ColumnText(6),
					CompletionSummary: stmt.ColumnText(9),
				}
				if !stmt.ColumnIsNull(7) {
					v := stmt.ColumnFloat(7)
					rec.EstimatedHours = &v
				}
				if !stmt.ColumnIsNull(8) {
					v := stmt.ColumnFloat(8)
					rec.ActualHours = &v
				}
				var err error
				if rec.CreatedAt, err = parseTime(stmt.ColumnText(10)); err != nil {
					return err
				}
				if rec.UpdatedAt, err = parseTime(stmt.ColumnText(11)); err != nil {
					return err
				}
				if !stmt.ColumnIsNull(12) {
					t, err := parseTime(stmt.ColumnText(12))
					if err != nil {
						return err
					}
					rec.CompletedAt = &t
				}
				snap[rec.ID] = rec
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}

	err = sqlitex.Execute(conn,
		`SELECT task_id, depends_on FROM dependencies ORDER BY task_id, depends_on`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if rec, ok := snap[stmt.ColumnText(0)]; ok {
					rec.DependsOn = append(rec.DependsOn, stmt.ColumnText(1))
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("read dependencies: %w", err)
	}
	return snap, nil
}

func insertDependency(conn *sqlite.Conn, taskID, dependsOn string) error {
	err := sqlitex.Execute(conn,
		`INSERT OR IGNORE INTO dependencies (task_id, depends_on) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{taskID, dependsOn}})
	if err != nil {
		return fmt.Errorf("insert dependency %s -> %s: %w", taskID, dependsOn, err)
	}
	return nil
}

func setStatus(conn *sqlite.Conn, id string, status task.Status) error {
	err := sqlitex.Execute(conn,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{string(status), formatTime(time.Now().UTC()), id}})
	if err != nil {
		return fmt.Errorf("set status %s on %s: %w", status, id, err)
	}
	return nil
}

func taskExists(conn *sqlite.Conn, id string) (bool, error) {
	exists := false
	err := sqlitex.Execute(conn, `SELECT 1 FROM tasks WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(*sqlite.Stmt) error {
				exists = true
				return nil
			},
		})
	return exists, err
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func sortRecords(recs []*task.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
