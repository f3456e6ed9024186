package engine

import (
	"context"
	"fmt"
)

// Controller drives a task one step at a time.
type Controller interface {
	// InitTask seeds the conversation state for a freshly created task.
	InitTask(ctx context.Context, task *Task) error
	// ExecuteStep runs one step of the task and returns the persisted Step.
	ExecuteStep(ctx context.Context, taskID, input string) (*Step, error)
	Variant() Variant
}

const roleSingle = "single"

// StepController is the single-role controller: one conversation per task,
// one completion and at most one ability per step.
type StepController struct {
	rt *runtime
}

var _ Controller = (*StepController)(nil)

// NewStepController wires a single-role controller.
func NewStepController(llm LLMClient, tasks TaskStore, states StateStore, abilities Dispatcher, prompts PromptRenderer, cfg ControllerConfig, hooks Hooks) (*StepController, error) {
	rt, err := newRuntime(llm, tasks, states, abilities, prompts, cfg, hooks)
	if err != nil {
		return nil, err
	}
	return &StepController{rt: rt}, nil
}

func (c *StepController) Variant() Variant { return VariantSingle }

// InitTask renders the system and task prompts into a new conversation.
func (c *StepController) InitTask(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("init task: nil task")
	}
	unlock := c.rt.locks.Lock(task.TaskID)
	defer unlock()

	_, err := c.seed(ctx, task)
	return err
}

func (c *StepController) seed(ctx context.Context, task *Task) (*TaskState, error) {
	system, err := c.rt.prompts.Render(PromptSystemFormat, nil)
	if err != nil {
		return nil, wrapStep(fmt.Errorf("render %s: %w", PromptSystemFormat, err), task.TaskID, "", roleSingle, "init")
	}
	intro, err := c.rt.prompts.Render(PromptTaskStep, map[string]any{
		"task":      task.Input,
		"abilities": c.rt.abilities.ListForPrompt(),
	})
	if err != nil {
		return nil, wrapStep(fmt.Errorf("render %s: %w", PromptTaskStep, err), task.TaskID, "", roleSingle, "init")
	}

	st := &TaskState{TaskID: task.TaskID, Variant: VariantSingle}
	st.History.Append(RoleSystem, system)
	st.History.Append(RoleUser, intro)

	if err := c.rt.states.SaveState(ctx, st); err != nil {
		return nil, wrapStep(err, task.TaskID, "", roleSingle, "save_state")
	}
	c.rt.hooks.OnTaskInit(ctx, st)
	return st, nil
}

// ExecuteStep asks the model for its next move, runs the chosen ability and
// records everything in the task's conversation.
//
// A failed ability ends the task instead of failing the step when the
// failure policy is AbilityFailureTerminate. Completion failures that
// outlast the retry policy are returned as errors and leave the step failed.
func (c *StepController) ExecuteStep(ctx context.Context, taskID, input string) (*Step, error) {
	unlock := c.rt.locks.Lock(taskID)
	defer unlock()

	st, step, err := c.rt.beginStep(ctx, taskID, input, roleSingle, c.seed)
	if err != nil {
		return nil, err
	}

	res, err := c.rt.act(ctx, st, roleSingle, &st.History)
	if err != nil {
		return nil, c.rt.failStep(ctx, step, wrapStep(err, taskID, step.StepID, roleSingle, "completion"))
	}
	if res.abilityFailed {
		step.IsLast = true
	}

	step.Output = res.answer.StepOutput()
	st.History.Append(RoleUser, NextStepPrompt)

	if res.answer.IsFinish() {
		step.IsLast = true
	}
	return c.rt.finishStep(ctx, st, step, roleSingle)
}
