package store

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Notification is a short status message left for an agent, most commonly
// "your task unblocked". Agents poll these rather than watching files.
type Notification struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Assignee  string    `json:"assignee,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

func (s *Store) insertNotification(conn *sqlite.Conn, taskID, typ, message, assignee string, now time.Time) error {
	err := sqlitex.Execute(conn, `
		INSERT INTO notifications (task_id, type, message, assignee, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{taskID, typ, message, assignee, formatTime(now)}})
	if err != nil {
		return fmt.Errorf("insert notification for %s: %w", taskID, err)
	}
	return nil
}

// Notifications returns notifications oldest-first, optionally only
// unread ones.
func (s *Store) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	query := `SELECT id, task_id, type, message, assignee, created_at, read
	          FROM notifications`
	if unreadOnly {
		query += ` WHERE read = 0`
	}
	query += ` ORDER BY id`

	var out []Notification
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n := Notification{
				ID:       stmt.ColumnInt64(0),
				TaskID:   stmt.ColumnText(1),
				Type:     stmt.ColumnText(2),
				Message:  stmt.ColumnText(3),
				Assignee: stmt.ColumnText(4),
				Read:     stmt.ColumnInt(6) != 0,
			}
			var err error
			if n.CreatedAt, err = parseTime(stmt.ColumnText(5)); err != nil {
				return err
			}
			out = append(out, n)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags the given notifications as read. Unknown ids are ignored.
func (s *Store) MarkRead(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	for _, id := range ids {
		err := sqlitex.Execute(conn,
			`UPDATE notifications SET read = 1 WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{id}})
		if err != nil {
			return fmt.Errorf("mark notification %d read: %w", id, err)
		}
	}
	return nil
}
