package providers

import (
	"errors"
	"strings"

	"github.com/ChamsBouzaiene/asimov/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/meguminnnnnnnnn/go-openai"
)

// extractErrorMetadata pulls the HTTP status and any Retry-After hint out of
// a provider error. Typed SDK errors win; otherwise only a status the message
// explicitly labels ("status 429", "status code: 401") is trusted.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	var (
		httpStatus int
		apiErr     *openai.APIError
		reqErr     *openai.RequestError
		antReqErr  *anthropic.RequestError
	)
	switch {
	case errors.As(err, &apiErr):
		httpStatus = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		httpStatus = reqErr.HTTPStatusCode
	case errors.As(err, &antReqErr):
		httpStatus = antReqErr.StatusCode
	}

	errStr := err.Error()
	if httpStatus == 0 {
		httpStatus = engine.StatusFromText(errStr)
	}

	var retryAfter string
	lower := strings.ToLower(errStr)
	for _, marker := range []string{"retry-after", "retry after"} {
		if idx := strings.Index(lower, marker); idx != -1 {
			remaining := strings.TrimLeft(errStr[idx+len(marker):], ": ")
			if parts := strings.Fields(remaining); len(parts) > 0 {
				retryAfter = strings.TrimRight(parts[0], ".,;)")
			}
			break
		}
	}

	return httpStatus, retryAfter
}
