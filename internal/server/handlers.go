package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ChamsBouzaiene/asimov/internal/engine"
	"github.com/ChamsBouzaiene/asimov/internal/store"
)

// TaskRequestBody is the body of POST /tasks.
type TaskRequestBody struct {
	Input           string         `json:"input"`
	AdditionalInput map[string]any `json:"additional_input,omitempty"`
}

// StepRequestBody is the body of POST /tasks/:task_id/steps. The body is optional.
type StepRequestBody struct {
	Input string `json:"input"`
}

// TaskResponse is a task with its artifacts.
type TaskResponse struct {
	*engine.Task
	Artifacts []*store.Artifact `json:"artifacts"`
}

// StepResponse is a step with the artifacts of its task.
type StepResponse struct {
	*engine.Step
	Artifacts []*store.Artifact `json:"artifacts"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "variant": s.agent.Variant()})
}

func pageParams(c *gin.Context) (int, int, bool) {
	parse := func(name string) (int, bool) {
		raw := c.Query(name)
		if raw == "" {
			return 0, true
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, fmt.Sprintf("invalid %s", name), err)
			return 0, false
		}
		return n, true
	}
	page, ok := parse("current_page")
	if !ok {
		return 0, 0, false
	}
	size, ok := parse("page_size")
	if !ok {
		return 0, 0, false
	}
	return page, size, true
}

func (s *Server) createTask(c *gin.Context) {
	var body TaskRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid task request", err)
		return
	}
	task, err := s.agent.CreateTask(c.Request.Context(), body.Input, body.AdditionalInput)
	if err != nil {
		respondError(c, "failed to create task", err)
		return
	}
	c.JSON(http.StatusOK, TaskResponse{Task: task, Artifacts: []*store.Artifact{}})
}

func (s *Server) listTasks(c *gin.Context) {
	page, size, ok := pageParams(c)
	if !ok {
		return
	}
	tasks, err := s.agent.ListTasks(c.Request.Context(), page, size)
	if err != nil {
		respondError(c, "failed to list tasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks.Items, "pagination": tasks.Pagination})
}

func (s *Server) getTask(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("task_id")
	task, err := s.agent.GetTask(ctx, taskID)
	if err != nil {
		respondError(c, "task not found", err)
		return
	}
	arts, err := s.allArtifacts(c, taskID)
	if err != nil {
		respondError(c, "failed to list artifacts", err)
		return
	}
	c.JSON(http.StatusOK, TaskResponse{Task: task, Artifacts: arts})
}

func (s *Server) executeStep(c *gin.Context) {
	var body StepRequestBody
	if c.Request.ContentLength != 0 {
		// A chunked request with nothing in it is still an empty body.
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "invalid step request", err)
			return
		}
	}
	taskID := c.Param("task_id")
	step, err := s.agent.ExecuteStep(c.Request.Context(), taskID, body.Input)
	if err != nil {
		respondError(c, "failed to execute step", err)
		return
	}
	arts, err := s.allArtifacts(c, taskID)
	if err != nil {
		respondError(c, "failed to list artifacts", err)
		return
	}
	c.JSON(http.StatusOK, StepResponse{Step: step, Artifacts: arts})
}

func (s *Server) listSteps(c *gin.Context) {
	page, size, ok := pageParams(c)
	if !ok {
		return
	}
	steps, err := s.agent.ListSteps(c.Request.Context(), c.Param("task_id"), page, size)
	if err != nil {
		respondError(c, "failed to list steps", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": steps.Items, "pagination": steps.Pagination})
}

func (s *Server) getStep(c *gin.Context) {
	taskID := c.Param("task_id")
	step, err := s.agent.GetStep(c.Request.Context(), taskID, c.Param("step_id"))
	if err != nil {
		respondError(c, "step not found", err)
		return
	}
	arts, err := s.allArtifacts(c, taskID)
	if err != nil {
		respondError(c, "failed to list artifacts", err)
		return
	}
	c.JSON(http.StatusOK, StepResponse{Step: step, Artifacts: arts})
}

func (s *Server) listArtifacts(c *gin.Context) {
	page, size, ok := pageParams(c)
	if !ok {
		return
	}
	arts, err := s.agent.ListArtifacts(c.Request.Context(), c.Param("task_id"), page, size)
	if err != nil {
		respondError(c, "failed to list artifacts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": arts.Items, "pagination": arts.Pagination})
}

func (s *Server) uploadArtifact(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required", err)
		return
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c, "unreadable upload", err)
		return
	}
	defer f.Close()

	art, err := s.agent.CreateArtifact(c.Request.Context(), c.Param("task_id"), header.Filename, c.PostForm("relative_path"), f)
	if err != nil {
		respondError(c, "failed to upload artifact", err)
		return
	}
	c.JSON(http.StatusOK, art)
}

func (s *Server) downloadArtifact(c *gin.Context) {
	art, data, err := s.agent.GetArtifact(c.Request.Context(), c.Param("task_id"), c.Param("artifact_id"))
	if err != nil {
		respondError(c, "artifact not found", err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.FileName}))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// allArtifacts collects every artifact of a task for task and step responses.
func (s *Server) allArtifacts(c *gin.Context, taskID string) ([]*store.Artifact, error) {
	const size = 100
	out := []*store.Artifact{}
	for page := 1; ; page++ {
		p, err := s.agent.ListArtifacts(c.Request.Context(), taskID, page, size)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Items...)
		if page >= p.Pagination.TotalPages {
			return out, nil
		}
	}
}
