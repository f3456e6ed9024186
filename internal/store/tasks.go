package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ChamsBouzaiene/asimov/internal/engine"
)

// CreateTask records a new task.
func (s *Store) CreateTask(ctx context.Context, input string, additionalInput map[string]any) (*engine.Task, error) {
	extra, err := marshalMap(additionalInput)
	if err != nil {
		return nil, fmt.Errorf("encode additional input: %w", err)
	}
	now := s.now()
	t := &engine.Task{
		TaskID:          s.id(),
		Input:           input,
		AdditionalInput: additionalInput,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, input, additional_input, created_at, modified_at) VALUES (?, ?, ?, ?, ?)`,
		t.TaskID, t.Input, extra, toUnix(now), toUnix(now))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// GetTask returns a task by id.
func (s *Store) GetTask(ctx context.Context, taskID string) (*engine.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, input, additional_input, created_at, modified_at FROM tasks WHERE task_id = ?`, taskID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("task", taskID)
	}
	return t, err
}

// ListTasks returns tasks newest first.
func (s *Store) ListTasks(ctx context.Context, page, pageSize int) (Page[*engine.Task], error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&total); err != nil {
		return Page[*engine.Task]{}, fmt.Errorf("count tasks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, input, additional_input, created_at, modified_at FROM tasks
		 ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return Page[*engine.Task]{}, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]*engine.Task, 0, pageSize)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return Page[*engine.Task]{}, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return Page[*engine.Task]{}, err
	}
	return Page[*engine.Task]{Items: items, Pagination: newPagination(total, page, pageSize)}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*engine.Task, error) {
	var (
		t                 engine.Task
		extra             sql.NullString
		created, modified int64
	)
	if err := sc.Scan(&t.TaskID, &t.Input, &extra, &created, &modified); err != nil {
		return nil, err
	}
	m, err := unmarshalMap(extra)
	if err != nil {
		return nil, fmt.Errorf("decode additional input of task %s: %w", t.TaskID, err)
	}
	t.AdditionalInput = m
	t.CreatedAt = fromUnix(created)
	t.ModifiedAt = fromUnix(modified)
	return &t, nil
}
