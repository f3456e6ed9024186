// Package server exposes the agent over the Agent Protocol HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ChamsBouzaiene/asimov/internal/agent"
	"github.com/ChamsBouzaiene/asimov/internal/logger"
)

// BasePath prefixes every protocol route.
const BasePath = "/ap/v1/agent"

// Server serves the protocol routes for one agent.
type Server struct {
	agent  *agent.Agent
	router *gin.Engine
	log    logger.Logger
}

// New builds the router for a.
func New(a *agent.Agent, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetDefault()
	}
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(log), CORSMiddleware())
	r.MaxMultipartMemory = 32 << 20

	s := &Server{agent: a, router: r, log: log}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)

	ap := s.router.Group(BasePath)
	ap.POST("/tasks", s.createTask)
	ap.GET("/tasks", s.listTasks)
	ap.GET("/tasks/:task_id", s.getTask)
	ap.POST("/tasks/:task_id/steps", s.executeStep)
	ap.GET("/tasks/:task_id/steps", s.listSteps)
	ap.GET("/tasks/:task_id/steps/:step_id", s.getStep)
	ap.GET("/tasks/:task_id/artifacts", s.listArtifacts)
	ap.POST("/tasks/:task_id/artifacts", s.uploadArtifact)
	ap.GET("/tasks/:task_id/artifacts/:artifact_id", s.downloadArtifact)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("agent protocol server listening", "addr", addr, "base_path", BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server bind error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
