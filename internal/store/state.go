package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ChamsBouzaiene/asimov/internal/engine"
)

// LoadState returns the controller state saved for a task.
func (s *Store) LoadState(ctx context.Context, taskID string) (*engine.TaskState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM task_state WHERE task_id = ?`, taskID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %w", engine.ErrStateNotFound, notFound("task", taskID))
	}
	if err != nil {
		return nil, fmt.Errorf("load task state: %w", err)
	}

	var st engine.TaskState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode task state %s: %w", taskID, err)
	}
	return &st, nil
}

// SaveState replaces the controller state of a task.
func (s *Store) SaveState(ctx context.Context, st *engine.TaskState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode task state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO task_state (task_id, variant, state, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET variant = excluded.variant, state = excluded.state, updated_at = excluded.updated_at`,
		st.TaskID, string(st.Variant), string(raw), toUnix(s.now()))
	if err != nil {
		return fmt.Errorf("save task state: %w", err)
	}
	return nil
}

var (
	_ engine.TaskStore  = (*Store)(nil)
	_ engine.StateStore = (*Store)(nil)
)
