// Package engine provides the step controllers that drive a task.
// This file contains error kinds and classification.

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"syscall"
	"time"
)

// ErrNoAbility is reported when an answer names no ability to run.
var ErrNoAbility = errors.New("answer names no ability")

// ErrMissingPlan is reported when a planner answer carries no thoughts.plan.
var ErrMissingPlan = errors.New("planner answer has no thoughts.plan")

// ErrStateNotFound is wrapped by StateStore.LoadState when a task was never
// seeded.
var ErrStateNotFound = errors.New("no conversation state")

// RetryClass indicates whether a transport error should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"
	RetryClassNonRetryable RetryClass = "non_retryable"
)

// DecodeError means the model reply could not be used as an Answer.
type DecodeError struct {
	Content string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode model reply: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError wraps a failed completion call with what we know about it.
type TransportError struct {
	Err         error
	Class       RetryClass
	HTTPStatus  int    // HTTP status code if applicable
	RetryAfter  string // Retry-After header value if present
	IsRateLimit bool
	IsAuth      bool
	IsQuota     bool
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion transport: %v", e.Err)
	}
	return fmt.Sprintf("completion transport: %s", e.Class)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError is raised when a completion or ability outlives its deadline.
type TimeoutError struct {
	Op      string // "completion" | "ability"
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// AbilityError wraps a failed ability dispatch.
type AbilityError struct {
	Ability string
	Err     error
}

func (e *AbilityError) Error() string {
	return fmt.Sprintf("ability %q: %v", e.Ability, e.Err)
}

func (e *AbilityError) Unwrap() error { return e.Err }

// RetryExhaustedError indicates that all attempts failed; Err is the last failure.
type RetryExhaustedError struct {
	Err      error
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// StepContextError wraps errors with the step they happened in.
type StepContextError struct {
	Err       error
	TaskID    string
	StepID    string
	Role      string // "single" | "actor" | "planner"
	Operation string // "load_task", "completion", "save_state", ...
}

func (e *StepContextError) Error() string {
	return fmt.Sprintf("[task=%s step=%s role=%s op=%s] %v", e.TaskID, e.StepID, e.Role, e.Operation, e.Err)
}

func (e *StepContextError) Unwrap() error { return e.Err }

func wrapStep(err error, taskID, stepID, role, op string) error {
	if err == nil {
		return nil
	}
	return &StepContextError{Err: err, TaskID: taskID, StepID: stepID, Role: role, Operation: op}
}

// IsRetryExhausted reports whether err came out of an exhausted retry loop.
func IsRetryExhausted(err error) bool {
	var target *RetryExhaustedError
	return errors.As(err, &target)
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsAbilityError reports whether err is (or wraps) an AbilityError.
func IsAbilityError(err error) bool {
	var target *AbilityError
	return errors.As(err, &target)
}

// statusPattern matches an HTTP status only where the text labels it as one,
// so addresses like 10.0.0.2:40123 never read as a 401.
var statusPattern = regexp.MustCompile(`(?i)\b(?:status(?:\s+code)?|http(?:/\d(?:\.\d)?)?)\s*[:=]?\s*([1-5]\d\d)\b`)

// permanentPattern matches provider phrases for failures a retry cannot fix.
var permanentPattern = regexp.MustCompile(`(?i)\b(?:unauthorized|forbidden|invalid[ _]api[ _]key|authentication[ _]failed|bad request|invalid[ _]request|payment required|insufficient_quota|quota|billing)\b`)

// StatusFromText returns the HTTP status an error message labels, or 0.
func StatusFromText(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

func permanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return true
	}
	return false
}

// ClassifyTransportError decides whether a failed completion call is worth
// repeating. Unknown failures are retried; only clearly permanent ones are not.
func ClassifyTransportError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}

	var te *TransportError
	if errors.As(err, &te) && te.Class != "" {
		return te.Class
	}
	if errors.Is(err, context.Canceled) {
		return RetryClassNonRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return RetryClassRetryable
	}

	msg := err.Error()
	if code := StatusFromText(msg); code != 0 {
		if permanentStatus(code) {
			return RetryClassNonRetryable
		}
		return RetryClassRetryable
	}
	if permanentPattern.MatchString(msg) {
		return RetryClassNonRetryable
	}
	return RetryClassRetryable
}

// WrapLLMError wraps a provider error with classification metadata.
func WrapLLMError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}

	te := &TransportError{
		Err:         err,
		HTTPStatus:  httpStatus,
		RetryAfter:  retryAfter,
		IsRateLimit: httpStatus == http.StatusTooManyRequests,
		IsAuth:      httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden,
		IsQuota:     httpStatus == http.StatusPaymentRequired,
	}
	switch {
	case permanentStatus(httpStatus):
		te.Class = RetryClassNonRetryable
	case httpStatus != 0:
		te.Class = RetryClassRetryable
	default:
		te.Class = ClassifyTransportError(err)
	}
	return te
}

// ExtractRetryAfter extracts a Retry-After hint from an error, or 0.
func ExtractRetryAfter(err error) time.Duration {
	var te *TransportError
	if errors.As(err, &te) && te.RetryAfter != "" {
		var seconds int
		if _, err := fmt.Sscanf(te.RetryAfter, "%d", &seconds); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if t, err := time.Parse(time.RFC1123, te.RetryAfter); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	return 0
}
