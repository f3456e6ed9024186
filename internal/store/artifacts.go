package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Artifact is a file produced by or uploaded to a task. The bytes live in the
// workspace; the row only records where.
type Artifact struct {
	ArtifactID   string    `json:"artifact_id"`
	TaskID       string    `json:"-"`
	StepID       string    `json:"step_id,omitempty"`
	FileName     string    `json:"file_name"`
	RelativePath string    `json:"relative_path"`
	AgentCreated bool      `json:"agent_created"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
}

const artifactColumns = `artifact_id, task_id, step_id, file_name, relative_path, agent_created, created_at, modified_at`

// CreateArtifact records a file for a task. Recording the same relative path
// twice returns the existing artifact.
func (s *Store) CreateArtifact(ctx context.Context, taskID, fileName, relativePath string, agentCreated bool) (*Artifact, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE task_id = ? AND relative_path = ?`, taskID, relativePath)
	existing, err := scanArtifact(row)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	now := s.now()
	a := &Artifact{
		ArtifactID:   s.id(),
		TaskID:       taskID,
		FileName:     fileName,
		RelativePath: relativePath,
		AgentCreated: agentCreated,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (`+artifactColumns+`) VALUES (?, ?, NULL, ?, ?, ?, ?, ?)`,
		a.ArtifactID, taskID, fileName, relativePath, boolToInt(agentCreated), toUnix(now), toUnix(now))
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	return a, nil
}

// GetArtifact returns one artifact of a task.
func (s *Store) GetArtifact(ctx context.Context, taskID, artifactID string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE task_id = ? AND artifact_id = ?`, taskID, artifactID)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("artifact", artifactID)
	}
	return a, err
}

// ListArtifacts returns a task's artifacts oldest first.
func (s *Store) ListArtifacts(ctx context.Context, taskID string, page, pageSize int) (Page[*Artifact], error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return Page[*Artifact]{}, err
	}
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts WHERE task_id = ?`, taskID).Scan(&total); err != nil {
		return Page[*Artifact]{}, fmt.Errorf("count artifacts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE task_id = ? ORDER BY created_at, rowid LIMIT ? OFFSET ?`,
		taskID, pageSize, (page-1)*pageSize)
	if err != nil {
		return Page[*Artifact]{}, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	items := make([]*Artifact, 0, pageSize)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return Page[*Artifact]{}, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return Page[*Artifact]{}, err
	}
	return Page[*Artifact]{Items: items, Pagination: newPagination(total, page, pageSize)}, nil
}

func scanArtifact(sc scanner) (*Artifact, error) {
	var (
		a                 Artifact
		stepID            sql.NullString
		agentCreated      int
		created, modified int64
	)
	err := sc.Scan(&a.ArtifactID, &a.TaskID, &stepID, &a.FileName, &a.RelativePath,
		&agentCreated, &created, &modified)
	if err != nil {
		return nil, err
	}
	a.StepID = stepID.String
	a.AgentCreated = agentCreated != 0
	a.CreatedAt = fromUnix(created)
	a.ModifiedAt = fromUnix(modified)
	return &a, nil
}

// RecordArtifact records an agent-created file. It lets the store serve as
// the write_file ability's artifact recorder.
func (s *Store) RecordArtifact(ctx context.Context, taskID, fileName, relativePath string) error {
	_, err := s.CreateArtifact(ctx, taskID, fileName, relativePath, true)
	return err
}
