// Package store persists tasks, steps, artifacts and per-task controller
// state in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a task, step, artifact or state row is missing.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the agent protocol.
type Store struct {
	db  *sql.DB
	now func() time.Time
	id  func() string
}

// Open creates a new database connection and initializes the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL allows readers alongside the single writer.
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
		id:  func() string { return uuid.NewString() },
	}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		task_id          TEXT PRIMARY KEY,
		input            TEXT NOT NULL,
		additional_input TEXT,
		created_at       INTEGER NOT NULL,
		modified_at      INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS steps (
		step_id          TEXT PRIMARY KEY,
		task_id          TEXT NOT NULL,
		seq              INTEGER NOT NULL,
		name             TEXT NOT NULL DEFAULT '',
		input            TEXT NOT NULL DEFAULT '',
		additional_input TEXT,
		output           TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		is_last          INTEGER NOT NULL DEFAULT 0,
		created_at       INTEGER NOT NULL,
		modified_at      INTEGER NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(task_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		artifact_id   TEXT PRIMARY KEY,
		task_id       TEXT NOT NULL,
		step_id       TEXT,
		file_name     TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		agent_created INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL,
		modified_at   INTEGER NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(task_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS task_state (
		task_id    TEXT PRIMARY KEY,
		variant    TEXT NOT NULL,
		state      TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(task_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_steps_task ON steps(task_id, seq);
	CREATE INDEX IF NOT EXISTS idx_artifacts_task ON artifacts(task_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Pagination mirrors the protocol's pagination block.
type Pagination struct {
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// DefaultPageSize is used when a caller asks for a page size < 1.
const DefaultPageSize = 10

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	return page, size
}

func newPagination(total, page, size int) Pagination {
	pages := (total + size - 1) / size
	return Pagination{TotalItems: total, TotalPages: pages, CurrentPage: page, PageSize: size}
}

func marshalMap(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalMap(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toUnix(t time.Time) int64 { return t.UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
