package engine

import (
	"context"
)

type Hooks []Hook

func (hs Hooks) OnTaskInit(ctx context.Context, st *TaskState) {
	for _, h := range hs {
		h.OnTaskInit(ctx, st)
	}
}
func (hs Hooks) OnStepStart(ctx context.Context, st *TaskState, step *Step) {
	for _, h := range hs {
		h.OnStepStart(ctx, st, step)
	}
}
func (hs Hooks) OnBeforeLLM(ctx context.Context, st *TaskState, role string, m []ChatMessage) {
	for _, h := range hs {
		h.OnBeforeLLM(ctx, st, role, m)
	}
}
func (hs Hooks) OnAfterLLM(ctx context.Context, st *TaskState, role string, r LLMResponse) {
	for _, h := range hs {
		h.OnAfterLLM(ctx, st, role, r)
	}
}
func (hs Hooks) OnAbilityCall(ctx context.Context, st *TaskState, c AbilityCall) {
	for _, h := range hs {
		h.OnAbilityCall(ctx, st, c)
	}
}
func (hs Hooks) OnAbilityResult(ctx context.Context, st *TaskState, c AbilityCall, out string, err error) {
	for _, h := range hs {
		h.OnAbilityResult(ctx, st, c, out, err)
	}
}
func (hs Hooks) OnPlanUpdated(ctx context.Context, st *TaskState, plan string) {
	for _, h := range hs {
		h.OnPlanUpdated(ctx, st, plan)
	}
}
func (hs Hooks) OnStepDone(ctx context.Context, st *TaskState, step *Step) {
	for _, h := range hs {
		h.OnStepDone(ctx, st, step)
	}
}
func (hs Hooks) OnRetryAttempt(ctx context.Context, st *TaskState, role string, attempt int, maxAttempts int, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, st, role, attempt, maxAttempts, err)
	}
}
func (hs Hooks) OnRetryExhausted(ctx context.Context, st *TaskState, role string, err error) {
	for _, h := range hs {
		h.OnRetryExhausted(ctx, st, role, err)
	}
}
