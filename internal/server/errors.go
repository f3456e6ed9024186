package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChamsBouzaiene/asimov/internal/agent"
	"github.com/ChamsBouzaiene/asimov/internal/engine"
	"github.com/ChamsBouzaiene/asimov/internal/store"
	"github.com/ChamsBouzaiene/asimov/internal/workspace"
)

// Error codes
const (
	ErrBadRequestCode      = "BAD_REQUEST"
	ErrNotFoundCode        = "NOT_FOUND"
	ErrInternalCode        = "INTERNAL_ERROR"
	ErrUpstreamCode        = "UPSTREAM_ERROR"
	ErrUpstreamTimeoutCode = "UPSTREAM_TIMEOUT"
)

// ErrorInfo is the body of every error response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// statusFor maps an error from the agent to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var (
		timeout   *engine.TimeoutError
		exhausted *engine.RetryExhaustedError
		transport *engine.TransportError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrNotFoundCode
	case errors.Is(err, agent.ErrInvalidInput), errors.Is(err, workspace.ErrOutsideWorkspace):
		return http.StatusBadRequest, ErrBadRequestCode
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, ErrUpstreamTimeoutCode
	case errors.As(err, &exhausted), errors.As(err, &transport):
		return http.StatusBadGateway, ErrUpstreamCode
	default:
		return http.StatusInternalServerError, ErrInternalCode
	}
}

func respondError(c *gin.Context, message string, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorInfo{Code: code, Message: message, Details: err.Error()}})
}

func badRequest(c *gin.Context, message string, err error) {
	info := ErrorInfo{Code: ErrBadRequestCode, Message: message}
	if err != nil {
		info.Details = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": info})
}
