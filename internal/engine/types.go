package engine

import (
	"context"
	"fmt"
	"time"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Validate checks if the ChatMessage is valid.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	return nil
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Add accumulates u into the receiver.
func (u *Usage) Add(other Usage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}

// LLMResponse is a normalized result of one chat call.
type LLMResponse struct {
	Assistant    ChatMessage
	Usage        Usage
	FinishReason string // "stop" | "length" | "content_filter"
}

// ChatOptions keeps knobs you'll forward to the SDK.
type ChatOptions struct {
	Temperature     float32
	MaxOutputTokens int
	// JSONMode asks the provider for a JSON object reply when it supports it.
	JSONMode bool
}

// LLMClient abstracts the chat-completion SDK (OpenAI, Anthropic, ...).
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (LLMResponse, error)
}

// StepStatus mirrors the protocol's step status values.
type StepStatus string

const (
	StepCreated   StepStatus = "created"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Task is one externally tracked unit of work.
type Task struct {
	TaskID          string         `json:"task_id"`
	Input           string         `json:"input"`
	AdditionalInput map[string]any `json:"additional_input,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ModifiedAt      time.Time      `json:"modified_at"`
}

// Step is one execution cycle within a task.
type Step struct {
	StepID          string         `json:"step_id"`
	TaskID          string         `json:"task_id"`
	Name            string         `json:"name,omitempty"`
	Input           string         `json:"input,omitempty"`
	AdditionalInput map[string]any `json:"additional_input,omitempty"`
	Output          string         `json:"output,omitempty"`
	Status          StepStatus     `json:"status"`
	IsLast          bool           `json:"is_last"`
	CreatedAt       time.Time      `json:"created_at"`
	ModifiedAt      time.Time      `json:"modified_at"`
}

// TaskStore is the slice of the persistence layer the controllers need.
type TaskStore interface {
	GetTask(ctx context.Context, taskID string) (*Task, error)
	CreateStep(ctx context.Context, taskID, input string, isLast bool) (*Step, error)
	UpdateStep(ctx context.Context, step *Step) error
}

// StateStore keeps per-task conversation state keyed by task id.
// LoadState wraps ErrStateNotFound for a task that has no state yet.
type StateStore interface {
	LoadState(ctx context.Context, taskID string) (*TaskState, error)
	SaveState(ctx context.Context, st *TaskState) error
}

// Dispatcher runs named abilities. It is satisfied by abilities.Registry.
type Dispatcher interface {
	Run(ctx context.Context, taskID, name string, args map[string]any) (string, error)
	ListForPrompt() string
}

// PromptRenderer renders a named prompt template.
type PromptRenderer interface {
	Render(name string, vars map[string]any) (string, error)
}
