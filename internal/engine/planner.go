package engine

import (
	"context"
	"fmt"
)

const (
	rolePlanner = "planner"
	roleActor   = "actor"
)

// PlannerActorController splits a task between two conversations: the
// actor picks abilities, the planner reads what the actor did and keeps a
// running plan that is fed back to the actor.
type PlannerActorController struct {
	rt *runtime
}

var _ Controller = (*PlannerActorController)(nil)

// NewPlannerActorController wires a planner/actor controller.
func NewPlannerActorController(llm LLMClient, tasks TaskStore, states StateStore, abilities Dispatcher, prompts PromptRenderer, cfg ControllerConfig, hooks Hooks) (*PlannerActorController, error) {
	rt, err := newRuntime(llm, tasks, states, abilities, prompts, cfg, hooks)
	if err != nil {
		return nil, err
	}
	return &PlannerActorController{rt: rt}, nil
}

func (c *PlannerActorController) Variant() Variant { return VariantPlannerActor }

// InitTask seeds the planner conversation, asks it for the initial plan and
// then seeds the actor conversation with that plan.
func (c *PlannerActorController) InitTask(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("init task: nil task")
	}
	unlock := c.rt.locks.Lock(task.TaskID)
	defer unlock()

	_, err := c.seed(ctx, task)
	return err
}

func (c *PlannerActorController) seed(ctx context.Context, task *Task) (*TaskState, error) {
	abilities := c.rt.abilities.ListForPrompt()
	render := func(name string, vars map[string]any) (string, error) {
		out, err := c.rt.prompts.Render(name, vars)
		if err != nil {
			return "", wrapStep(fmt.Errorf("render %s: %w", name, err), task.TaskID, "", rolePlanner, "init")
		}
		return out, nil
	}

	actorSystem, err := render(PromptSystemFormatActor, map[string]any{"abilities": abilities})
	if err != nil {
		return nil, err
	}
	plannerSystem, err := render(PromptSystemFormatPlanner, map[string]any{"abilities": abilities})
	if err != nil {
		return nil, err
	}
	plannerIntro, err := render(PromptTaskIntroPlanner, map[string]any{"task": task.Input})
	if err != nil {
		return nil, err
	}

	st := &TaskState{TaskID: task.TaskID, Variant: VariantPlannerActor}
	st.Planner.Append(RoleSystem, plannerSystem)
	st.Planner.Append(RoleUser, plannerIntro)

	plan, err := c.plan(ctx, st)
	if err != nil {
		return nil, wrapStep(err, task.TaskID, "", rolePlanner, "initial_plan")
	}
	st.Plan = plan
	c.rt.hooks.OnPlanUpdated(ctx, st, plan)

	actorIntro, err := render(PromptTaskIntroActor, map[string]any{"task": task.Input, "plan": plan})
	if err != nil {
		return nil, err
	}
	st.Actor.Append(RoleSystem, actorSystem)
	st.Actor.Append(RoleUser, actorIntro)

	if err := c.rt.states.SaveState(ctx, st); err != nil {
		return nil, wrapStep(err, task.TaskID, "", rolePlanner, "save_state")
	}
	c.rt.hooks.OnTaskInit(ctx, st)
	return st, nil
}

// ExecuteStep runs one actor round and one planner round.
func (c *PlannerActorController) ExecuteStep(ctx context.Context, taskID, input string) (*Step, error) {
	unlock := c.rt.locks.Lock(taskID)
	defer unlock()

	st, step, err := c.rt.beginStep(ctx, taskID, input, roleActor, c.seed)
	if err != nil {
		return nil, err
	}

	res, err := c.rt.act(ctx, st, roleActor, &st.Actor)
	if err != nil {
		return nil, c.rt.failStep(ctx, step, wrapStep(err, taskID, step.StepID, roleActor, "completion"))
	}
	if c.rt.cfg.SingleStep || res.abilityFailed {
		step.IsLast = true
	}
	step.Output = res.answer.StepOutput()

	feedback, err := c.rt.prompts.Render(PromptUserStepPlanner, map[string]any{"step_output": res.answer.Raw})
	if err != nil {
		return nil, c.rt.failStep(ctx, step, wrapStep(fmt.Errorf("render %s: %w", PromptUserStepPlanner, err), taskID, step.StepID, rolePlanner, "render"))
	}
	st.Planner.Append(RoleUser, feedback)

	plan, err := c.plan(ctx, st)
	if err != nil {
		return nil, c.rt.failStep(ctx, step, wrapStep(err, taskID, step.StepID, rolePlanner, "completion"))
	}
	st.Plan = plan
	c.rt.hooks.OnPlanUpdated(ctx, st, plan)

	next, err := c.rt.prompts.Render(PromptUserStepActor, map[string]any{"plan": plan})
	if err != nil {
		return nil, c.rt.failStep(ctx, step, wrapStep(fmt.Errorf("render %s: %w", PromptUserStepActor, err), taskID, step.StepID, roleActor, "render"))
	}
	st.Actor.Append(RoleUser, next)

	if res.answer.IsFinish() {
		step.IsLast = true
	}
	return c.rt.finishStep(ctx, st, step, roleActor)
}

// plan asks the planner for thoughts.plan. The planner's reply itself is not
// kept in its conversation; only the user feedback accumulates there.
func (c *PlannerActorController) plan(ctx context.Context, st *TaskState) (string, error) {
	policy := c.rt.cfg.retryPolicy()
	plan, err := RetryWithPolicy(ctx, policy, func(ctx context.Context) (string, error) {
		answer, err := c.rt.completeAnswer(ctx, st, rolePlanner, c.rt.cfg.plannerModel(), &st.Planner)
		if err != nil {
			return "", err
		}
		if answer.Plan == nil {
			return "", &DecodeError{Content: answer.Raw, Err: ErrMissingPlan}
		}
		return *answer.Plan, nil
	}, func(attempt int, err error) {
		c.rt.hooks.OnRetryAttempt(ctx, st, rolePlanner, attempt, policy.MaxAttempts, err)
	})
	if err != nil {
		c.rt.hooks.OnRetryExhausted(ctx, st, rolePlanner, err)
		return "", err
	}
	return plan, nil
}
