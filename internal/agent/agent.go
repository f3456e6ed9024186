// Package agent ties the store, the workspace and a step controller together
// behind the task/step/artifact operations the protocol server exposes.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ChamsBouzaiene/asimov/internal/engine"
	"github.com/ChamsBouzaiene/asimov/internal/logger"
	"github.com/ChamsBouzaiene/asimov/internal/store"
	"github.com/ChamsBouzaiene/asimov/internal/workspace"
)

// ErrInvalidInput marks requests the caller has to fix.
var ErrInvalidInput = errors.New("invalid input")

// Agent serves tasks, steps and artifacts.
type Agent struct {
	store      *store.Store
	workspace  *workspace.Local
	controller engine.Controller
	log        logger.Logger
	closers    []func() error
}

// New wires an agent from already constructed parts.
func New(s *store.Store, ws *workspace.Local, controller engine.Controller) (*Agent, error) {
	if s == nil {
		return nil, fmt.Errorf("store not configured")
	}
	if ws == nil {
		return nil, fmt.Errorf("workspace not configured")
	}
	if controller == nil {
		return nil, fmt.Errorf("controller not configured")
	}
	return &Agent{store: s, workspace: ws, controller: controller, log: logger.GetDefault()}, nil
}

// Variant reports which controller drives the agent's tasks.
func (a *Agent) Variant() engine.Variant { return a.controller.Variant() }

// Workspace returns the task workspace.
func (a *Agent) Workspace() *workspace.Local { return a.workspace }

// Close releases everything the agent opened.
func (a *Agent) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateTask stores a new task and seeds its conversation.
func (a *Agent) CreateTask(ctx context.Context, input string, additionalInput map[string]any) (*engine.Task, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: task input is empty", ErrInvalidInput)
	}
	task, err := a.store.CreateTask(ctx, input, additionalInput)
	if err != nil {
		return nil, err
	}
	if err := a.controller.InitTask(ctx, task); err != nil {
		return nil, fmt.Errorf("init task %s: %w", task.TaskID, err)
	}
	a.log.Info("task created", "task_id", task.TaskID, "variant", a.controller.Variant())
	return task, nil
}

// ExecuteStep runs the next step of a task. A task whose seeding failed at
// creation is seeded by the controller before its first step.
func (a *Agent) ExecuteStep(ctx context.Context, taskID, input string) (*engine.Step, error) {
	return a.controller.ExecuteStep(ctx, taskID, input)
}

// GetTask returns a task.
func (a *Agent) GetTask(ctx context.Context, taskID string) (*engine.Task, error) {
	return a.store.GetTask(ctx, taskID)
}

// ListTasks returns a page of tasks, newest first.
func (a *Agent) ListTasks(ctx context.Context, page, pageSize int) (store.Page[*engine.Task], error) {
	return a.store.ListTasks(ctx, page, pageSize)
}

// GetStep returns one step of a task.
func (a *Agent) GetStep(ctx context.Context, taskID, stepID string) (*engine.Step, error) {
	return a.store.GetStep(ctx, taskID, stepID)
}

// ListSteps returns a page of a task's steps in execution order.
func (a *Agent) ListSteps(ctx context.Context, taskID string, page, pageSize int) (store.Page[*engine.Step], error) {
	if _, err := a.store.GetTask(ctx, taskID); err != nil {
		return store.Page[*engine.Step]{}, err
	}
	return a.store.ListSteps(ctx, taskID, page, pageSize)
}

// ListArtifacts returns a page of a task's artifacts.
func (a *Agent) ListArtifacts(ctx context.Context, taskID string, page, pageSize int) (store.Page[*store.Artifact], error) {
	if _, err := a.store.GetTask(ctx, taskID); err != nil {
		return store.Page[*store.Artifact]{}, err
	}
	return a.store.ListArtifacts(ctx, taskID, page, pageSize)
}

// CreateArtifact stores an uploaded file in the task workspace at
// relativePath/fileName and records it.
func (a *Agent) CreateArtifact(ctx context.Context, taskID, fileName, relativePath string, r io.Reader) (*store.Artifact, error) {
	fileName = path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, fmt.Errorf("%w: file name is empty", ErrInvalidInput)
	}
	if _, err := a.store.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	rel := path.Join(strings.TrimPrefix(path.Clean("/"+relativePath), "/"), fileName)
	if _, err := a.workspace.AbsPath(taskID, rel); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := a.workspace.Write(taskID, rel, data); err != nil {
		return nil, err
	}
	return a.store.CreateArtifact(ctx, taskID, fileName, rel, false)
}

// GetArtifact returns an artifact's record and its contents.
func (a *Agent) GetArtifact(ctx context.Context, taskID, artifactID string) (*store.Artifact, []byte, error) {
	art, err := a.store.GetArtifact(ctx, taskID, artifactID)
	if err != nil {
		return nil, nil, err
	}
	data, err := a.workspace.Read(taskID, art.RelativePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read artifact %s: %w", artifactID, err)
	}
	return art, data, nil
}
