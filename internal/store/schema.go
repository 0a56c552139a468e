package store

// schema is applied to every new connection. CREATE IF NOT EXISTS keeps it
// idempotent across the pool.
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id                 TEXT PRIMARY KEY,
    title              TEXT NOT NULL,
    description        TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'pending',
    priority           INTEGER NOT NULL DEFAULT 0,
    assignee           TEXT NOT NULL DEFAULT '',
    created_by         TEXT NOT NULL DEFAULT '',
    estimated_hours    REAL,
    actual_hours       REAL,
    completion_summary TEXT NOT NULL DEFAULT '',
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL,
    completed_at       TEXT
);

CREATE TABLE IF NOT EXISTS dependencies (
    task_id    TEXT NOT NULL REFERENCES tasks(id),
    depends_on TEXT NOT NULL,
    PRIMARY KEY (task_id, depends_on)
);

CREATE INDEX IF NOT EXISTS idx_dependencies_depends_on
    ON dependencies(depends_on);

CREATE TABLE IF NOT EXISTS notifications (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id    TEXT NOT NULL,
    type       TEXT NOT NULL,
    message    TEXT NOT NULL,
    assignee   TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    read       INTEGER NOT NULL DEFAULT 0
);
`
