package engine

import "sync"

// Variant selects which step controller drives a task.
type Variant string

const (
	VariantSingle       Variant = "single"
	VariantPlannerActor Variant = "planner_actor"
)

// Conversation is an append-only, ordered list of chat messages.
type Conversation struct {
	Messages []ChatMessage `json:"messages"`
}

// Append adds a message at the end of the conversation.
func (c *Conversation) Append(role MessageRole, content string) {
	c.Messages = append(c.Messages, ChatMessage{Role: role, Content: content})
}

func (c *Conversation) Len() int { return len(c.Messages) }

// Snapshot returns a copy that is safe to hand to a provider.
func (c *Conversation) Snapshot() []ChatMessage {
	return append([]ChatMessage(nil), c.Messages...)
}

// TaskState is the per-task state the controllers load, mutate and save.
// Single-role tasks use History; planner/actor tasks use Planner, Actor and Plan.
type TaskState struct {
	TaskID  string       `json:"task_id"`
	Variant Variant      `json:"variant"`
	History Conversation `json:"history"`
	Planner Conversation `json:"planner"`
	Actor   Conversation `json:"actor"`
	Plan    string       `json:"plan,omitempty"`
	Steps   int          `json:"steps"` // completed steps
	Totals  Usage        `json:"totals"`
}

// TaskLocks serializes step execution per task id.
type TaskLocks struct {
	mu    sync.Mutex
	locks map[string]*taskLock
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

// NewTaskLocks returns an empty lock table.
func NewTaskLocks() *TaskLocks {
	return &TaskLocks{locks: make(map[string]*taskLock)}
}

// Lock blocks until the task's lock is held and returns its release func.
func (l *TaskLocks) Lock(taskID string) func() {
	l.mu.Lock()
	tl, ok := l.locks[taskID]
	if !ok {
		tl = &taskLock{}
		l.locks[taskID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, taskID)
		}
		l.mu.Unlock()
	}
}
