package engine

import (
	"context"
	"errors"
	"fmt"
)

// runtime is what both controllers share: the model, the abilities, the
// stores and the policy that ties them together.
type runtime struct {
	llm       LLMClient
	tasks     TaskStore
	states    StateStore
	abilities Dispatcher
	prompts   PromptRenderer
	hooks     Hooks
	cfg       ControllerConfig
	locks     *TaskLocks
}

func newRuntime(llm LLMClient, tasks TaskStore, states StateStore, abilities Dispatcher, prompts PromptRenderer, cfg ControllerConfig, hooks Hooks) (*runtime, error) {
	switch {
	case llm == nil:
		return nil, errors.New("LLM client not configured")
	case tasks == nil:
		return nil, errors.New("task store not configured")
	case states == nil:
		return nil, errors.New("state store not configured")
	case abilities == nil:
		return nil, errors.New("ability dispatcher not configured")
	case prompts == nil:
		return nil, errors.New("prompt renderer not configured")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	return &runtime{
		llm:       llm,
		tasks:     tasks,
		states:    states,
		abilities: abilities,
		prompts:   prompts,
		hooks:     hooks,
		cfg:       cfg,
		locks:     NewTaskLocks(),
	}, nil
}

// chat runs one completion bounded by the completion timeout.
func (r *runtime) chat(ctx context.Context, st *TaskState, role, model string, msgs []ChatMessage) (LLMResponse, error) {
	callCtx := ctx
	if r.cfg.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.CompletionTimeout)
		defer cancel()
	}

	r.hooks.OnBeforeLLM(ctx, st, role, msgs)
	resp, err := r.llm.Chat(callCtx, model, msgs, r.cfg.ChatOptions)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return LLMResponse{}, &TimeoutError{Op: "completion", Timeout: r.cfg.CompletionTimeout, Err: err}
		}
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Err: err, Class: ClassifyTransportError(err)}
		}
		return LLMResponse{}, err
	}
	st.Totals.Add(resp.Usage)
	r.hooks.OnAfterLLM(ctx, st, role, resp)
	return resp, nil
}

// completeAnswer asks the model once and parses the reply.
func (r *runtime) completeAnswer(ctx context.Context, st *TaskState, role, model string, conv *Conversation) (Answer, error) {
	resp, err := r.chat(ctx, st, role, model, conv.Snapshot())
	if err != nil {
		return Answer{}, err
	}
	return ParseAnswer(resp.Assistant.Content)
}

// dispatch runs the chosen ability under the ability timeout.
func (r *runtime) dispatch(ctx context.Context, st *TaskState, answer Answer) (string, error) {
	if answer.Ability == nil {
		err := &AbilityError{Err: ErrNoAbility}
		r.hooks.OnAbilityResult(ctx, st, AbilityCall{}, "", err)
		return "", err
	}
	call := *answer.Ability
	r.hooks.OnAbilityCall(ctx, st, call)

	callCtx := ctx
	if r.cfg.AbilityTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.AbilityTimeout)
		defer cancel()
	}

	out, err := r.abilities.Run(callCtx, st.TaskID, call.Name, call.Args)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = &TimeoutError{Op: "ability", Timeout: r.cfg.AbilityTimeout, Err: err}
		}
		err = &AbilityError{Ability: call.Name, Err: err}
	}
	r.hooks.OnAbilityResult(ctx, st, call, out, err)
	return out, err
}

// actResult is what one acting round produced.
type actResult struct {
	answer        Answer
	abilityFailed bool
}

// act performs the acting half of a step against conv: ask the model, record
// its answer, run the ability and record the ability's output.
//
// With AbilityFailureTerminate only the completion is retried and a failed
// ability is reported through actResult. With AbilityFailureRetry the whole
// round is retried, so the answer is appended once per attempt.
func (r *runtime) act(ctx context.Context, st *TaskState, role string, conv *Conversation) (actResult, error) {
	policy := r.cfg.retryPolicy()
	onRetry := func(attempt int, err error) {
		r.hooks.OnRetryAttempt(ctx, st, role, attempt, policy.MaxAttempts, err)
	}

	if r.cfg.AbilityFailure == AbilityFailureRetry {
		res, err := RetryWithPolicy(ctx, policy, func(ctx context.Context) (actResult, error) {
			answer, err := r.completeAnswer(ctx, st, role, r.cfg.Model, conv)
			if err != nil {
				return actResult{}, err
			}
			conv.Append(RoleAssistant, answer.Raw)
			out, err := r.dispatch(ctx, st, answer)
			if err != nil {
				return actResult{}, err
			}
			if out != "" {
				conv.Append(RoleAssistant, AbilitySummary(*answer.Ability, out))
			}
			return actResult{answer: answer}, nil
		}, onRetry)
		if err != nil {
			r.hooks.OnRetryExhausted(ctx, st, role, err)
		}
		return res, err
	}

	answer, err := RetryWithPolicy(ctx, policy, func(ctx context.Context) (Answer, error) {
		return r.completeAnswer(ctx, st, role, r.cfg.Model, conv)
	}, onRetry)
	if err != nil {
		r.hooks.OnRetryExhausted(ctx, st, role, err)
		return actResult{}, err
	}
	conv.Append(RoleAssistant, answer.Raw)

	out, err := r.dispatch(ctx, st, answer)
	if err != nil {
		return actResult{answer: answer, abilityFailed: true}, nil
	}
	if out != "" {
		conv.Append(RoleAssistant, AbilitySummary(*answer.Ability, out))
	}
	return actResult{answer: answer}, nil
}

// finishStep stamps the step, persists state and step, and fires the hooks.
func (r *runtime) finishStep(ctx context.Context, st *TaskState, step *Step, role string) (*Step, error) {
	step.Status = StepCompleted
	st.Steps++
	if err := r.states.SaveState(ctx, st); err != nil {
		return nil, r.failStep(ctx, step, wrapStep(err, st.TaskID, step.StepID, role, "save_state"))
	}
	if err := r.tasks.UpdateStep(ctx, step); err != nil {
		return nil, wrapStep(err, st.TaskID, step.StepID, role, "update_step")
	}
	r.hooks.OnStepDone(ctx, st, step)
	return step, nil
}

// seedFunc builds and saves the initial state of a task. It runs with the
// task lock held.
type seedFunc func(ctx context.Context, task *Task) (*TaskState, error)

// beginStep loads the task and its state and records a new step. A task that
// was never seeded is seeded first, under the same lock as the step.
func (r *runtime) beginStep(ctx context.Context, taskID, input, role string, seed seedFunc) (*TaskState, *Step, error) {
	task, err := r.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, wrapStep(err, taskID, "", role, "load_task")
	}
	st, err := r.states.LoadState(ctx, taskID)
	if errors.Is(err, ErrStateNotFound) {
		st, err = seed(ctx, task)
		if err != nil {
			return nil, nil, err
		}
	} else if err != nil {
		return nil, nil, wrapStep(err, taskID, "", role, "load_state")
	}
	step, err := r.tasks.CreateStep(ctx, taskID, input, false)
	if err != nil {
		return nil, nil, wrapStep(err, taskID, "", role, "create_step")
	}
	step.Status = StepRunning
	r.hooks.OnStepStart(ctx, st, step)
	return st, step, nil
}

// failStep records a step that could not complete. The conversation state is
// left as it was before the step, so the next step starts from there.
func (r *runtime) failStep(ctx context.Context, step *Step, cause error) error {
	step.Status = StepFailed
	step.Output = cause.Error()
	if err := r.tasks.UpdateStep(context.WithoutCancel(ctx), step); err != nil {
		return errors.Join(cause, fmt.Errorf("mark step %s failed: %w", step.StepID, err))
	}
	return cause
}
