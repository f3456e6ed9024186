package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// scriptedLLM replays canned replies in order. A reply with a non-nil err
// fails that call.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int
	seen    [][]ChatMessage
	models  []string
}

type scriptedReply struct {
	content string
	err     error
	delay   time.Duration
}

func (s *scriptedLLM) Chat(ctx context.Context, model string, msgs []ChatMessage, _ ChatOptions) (LLMResponse, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.seen = append(s.seen, msgs)
	s.models = append(s.models, model)
	s.mu.Unlock()

	if idx >= len(s.replies) {
		return LLMResponse{}, fmt.Errorf("scriptedLLM: no reply for call %d", idx+1)
	}
	r := s.replies[idx]
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		}
	}
	if r.err != nil {
		return LLMResponse{}, r.err
	}
	return LLMResponse{
		Assistant: ChatMessage{Role: RoleAssistant, Content: r.content},
		Usage:     Usage{Prompt: 10, Completion: 5, Total: 15},
	}, nil
}

func (s *scriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func replies(contents ...string) []scriptedReply {
	out := make([]scriptedReply, len(contents))
	for i, c := range contents {
		out[i] = scriptedReply{content: c}
	}
	return out
}

// memStore is an in-memory TaskStore and StateStore.
type memStore struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	steps  map[string]*Step
	states map[string][]byte
	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		tasks:  map[string]*Task{},
		steps:  map[string]*Step{},
		states: map[string][]byte{},
	}
}

func (m *memStore) addTask(id, input string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &Task{TaskID: id, Input: input, CreatedAt: time.Now()}
	m.tasks[id] = t
	return t
}

func (m *memStore) GetTask(_ context.Context, taskID string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, errors.New("task not found")
	}
	return t, nil
}

func (m *memStore) CreateStep(_ context.Context, taskID, input string, isLast bool) (*Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := &Step{
		StepID: fmt.Sprintf("step-%d", m.nextID),
		TaskID: taskID,
		Input:  input,
		IsLast: isLast,
		Status: StepCreated,
	}
	cp := *s
	m.steps[s.StepID] = &cp
	return s, nil
}

func (m *memStore) UpdateStep(_ context.Context, step *Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.steps[step.StepID]; !ok {
		return errors.New("step not found")
	}
	cp := *step
	m.steps[step.StepID] = &cp
	return nil
}

func (m *memStore) step(id string) *Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps[id]
}

// States round-trip through JSON so tests see what a real store would keep.
func (m *memStore) LoadState(_ context.Context, taskID string) (*TaskState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.states[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrStateNotFound)
	}
	var st TaskState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *memStore) SaveState(_ context.Context, st *TaskState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.TaskID] = raw
	return nil
}

func (m *memStore) state(taskID string) *TaskState {
	st, err := m.LoadState(context.Background(), taskID)
	if err != nil {
		return nil
	}
	return st
}

// fakeAbilities records calls and answers from a per-name table.
type fakeAbilities struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	flaky   map[string]int // fail this many calls before succeeding
	delay   time.Duration
	calls   []AbilityCall
}

func (f *fakeAbilities) Run(ctx context.Context, _ string, name string, args map[string]any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, AbilityCall{Name: name, Args: args})
	flaky := f.flaky[name] > 0
	if flaky {
		f.flaky[name]--
	}
	f.mu.Unlock()

	if flaky {
		return "", fmt.Errorf("%s: transient failure", name)
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.errs[name]; ok {
		return "", err
	}
	if out, ok := f.outputs[name]; ok {
		return out, nil
	}
	if name == FinishAbility {
		if r, ok := args["reason"].(string); ok {
			return r, nil
		}
		return "", nil
	}
	return "", fmt.Errorf("unknown ability %q", name)
}

func (f *fakeAbilities) ListForPrompt() string { return "- finish(reason: string) -> None" }

func (f *fakeAbilities) Calls() []AbilityCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AbilityCall(nil), f.calls...)
}

// fakePrompts renders "<name>|k=v,..." so tests can see what was rendered.
type fakePrompts struct{}

func (fakePrompts) Render(name string, vars map[string]any) (string, error) {
	out := name
	for _, k := range []string{"task", "abilities", "plan", "step_output"} {
		if v, ok := vars[k]; ok {
			out += fmt.Sprintf("|%s=%v", k, v)
		}
	}
	return out, nil
}

func testConfig(policy AbilityFailurePolicy) ControllerConfig {
	cfg := DefaultControllerConfig()
	cfg.AbilityFailure = policy
	cfg.CompletionTimeout = 0
	cfg.AbilityTimeout = 0
	return cfg
}
