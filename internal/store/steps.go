package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ChamsBouzaiene/asimov/internal/engine"
)

const stepColumns = `step_id, task_id, name, input, additional_input, output, status, is_last, created_at, modified_at`

// CreateStep records a new step for a task.
func (s *Store) CreateStep(ctx context.Context, taskID, input string, isLast bool) (*engine.Step, error) {
	return s.CreateNamedStep(ctx, taskID, "", input, nil, isLast)
}

// CreateNamedStep is CreateStep with the protocol's optional name and
// additional input.
func (s *Store) CreateNamedStep(ctx context.Context, taskID, name, input string, additionalInput map[string]any, isLast bool) (*engine.Step, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	extra, err := marshalMap(additionalInput)
	if err != nil {
		return nil, fmt.Errorf("encode additional input: %w", err)
	}

	now := s.now()
	step := &engine.Step{
		StepID:          s.id(),
		TaskID:          taskID,
		Name:            name,
		Input:           input,
		AdditionalInput: additionalInput,
		Status:          engine.StepCreated,
		IsLast:          isLast,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO steps (step_id, task_id, seq, name, input, additional_input, output, status, is_last, created_at, modified_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM steps WHERE task_id = ?), ?, ?, ?, '', ?, ?, ?, ?)`,
		step.StepID, taskID, taskID, name, input, extra, string(step.Status), boolToInt(isLast), toUnix(now), toUnix(now))
	if err != nil {
		return nil, fmt.Errorf("insert step: %w", err)
	}
	return step, nil
}

// UpdateStep writes back a step's output, status and is_last flag.
func (s *Store) UpdateStep(ctx context.Context, step *engine.Step) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE steps SET output = ?, status = ?, is_last = ?, modified_at = ? WHERE step_id = ? AND task_id = ?`,
		step.Output, string(step.Status), boolToInt(step.IsLast), toUnix(now), step.StepID, step.TaskID)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("step", step.StepID)
	}
	step.ModifiedAt = now
	if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET modified_at = ? WHERE task_id = ?`, toUnix(now), step.TaskID); err != nil {
		return fmt.Errorf("touch task: %w", err)
	}
	return nil
}

// GetStep returns one step of a task.
func (s *Store) GetStep(ctx context.Context, taskID, stepID string) (*engine.Step, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE task_id = ? AND step_id = ?`, taskID, stepID)
	step, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("step", stepID)
	}
	return step, err
}

// ListSteps returns a task's steps in execution order.
func (s *Store) ListSteps(ctx context.Context, taskID string, page, pageSize int) (Page[*engine.Step], error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return Page[*engine.Step]{}, err
	}
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM steps WHERE task_id = ?`, taskID).Scan(&total); err != nil {
		return Page[*engine.Step]{}, fmt.Errorf("count steps: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE task_id = ? ORDER BY seq LIMIT ? OFFSET ?`,
		taskID, pageSize, (page-1)*pageSize)
	if err != nil {
		return Page[*engine.Step]{}, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	items := make([]*engine.Step, 0, pageSize)
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return Page[*engine.Step]{}, err
		}
		items = append(items, step)
	}
	if err := rows.Err(); err != nil {
		return Page[*engine.Step]{}, err
	}
	return Page[*engine.Step]{Items: items, Pagination: newPagination(total, page, pageSize)}, nil
}

func scanStep(sc scanner) (*engine.Step, error) {
	var (
		step              engine.Step
		extra             sql.NullString
		status            string
		isLast            int
		created, modified int64
	)
	err := sc.Scan(&step.StepID, &step.TaskID, &step.Name, &step.Input, &extra,
		&step.Output, &status, &isLast, &created, &modified)
	if err != nil {
		return nil, err
	}
	m, err := unmarshalMap(extra)
	if err != nil {
		return nil, fmt.Errorf("decode additional input of step %s: %w", step.StepID, err)
	}
	step.AdditionalInput = m
	step.Status = engine.StepStatus(status)
	step.IsLast = isLast != 0
	step.CreatedAt = fromUnix(created)
	step.ModifiedAt = fromUnix(modified)
	return &step, nil
}
