// Package journal keeps a local SQLite log of processing attempts so
// operators can inspect recent outcomes without the front end. It never
// stores work items and is not consulted for retry decisions; durability
// stays with the external queue.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry records one loop iteration that pulled a message.
type Entry struct {
	ID           int64
	MessageID    string
	AttemptID    string
	Outcome      string
	State        string
	Result       string
	ErrorMessage string
	Host         string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Store manages attempt persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT NOT NULL,
    attempt_id TEXT NOT NULL,
    outcome TEXT NOT NULL,
    state TEXT,
    result TEXT,
    error_message TEXT,
    host TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_message ON attempts(message_id);
`

// Open initializes or connects to the journal database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record inserts one attempt.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO attempts (
            message_id, attempt_id, outcome, state, result,
            error_message, host, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.MessageID,
		entry.AttemptID,
		entry.Outcome,
		entry.State,
		entry.Result,
		entry.ErrorMessage,
		entry.Host,
		entry.StartedAt.UTC().Format(time.RFC3339Nano),
		entry.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Recent returns the newest attempts, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, message_id, attempt_id, outcome, state, result,
                error_message, host, started_at, finished_at
         FROM attempts ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var started, finished string
		if err := rows.Scan(
			&entry.ID,
			&entry.MessageID,
			&entry.AttemptID,
			&entry.Outcome,
			&entry.State,
			&entry.Result,
			&entry.ErrorMessage,
			&entry.Host,
			&started,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		entry.StartedAt = parseTimestamp(started)
		entry.FinishedAt = parseTimestamp(finished)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return entries, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
