// engine/hooks.go
package engine

import (
	"context"
)

type Hook interface {
	OnTaskInit(ctx context.Context, st *TaskState)
	OnStepStart(ctx context.Context, st *TaskState, step *Step)
	OnBeforeLLM(ctx context.Context, st *TaskState, role string, messages []ChatMessage)
	OnAfterLLM(ctx context.Context, st *TaskState, role string, resp LLMResponse)
	OnAbilityCall(ctx context.Context, st *TaskState, call AbilityCall)
	OnAbilityResult(ctx context.Context, st *TaskState, call AbilityCall, output string, err error)
	OnPlanUpdated(ctx context.Context, st *TaskState, plan string)
	OnStepDone(ctx context.Context, st *TaskState, step *Step)
	// Retry hooks
	OnRetryAttempt(ctx context.Context, st *TaskState, role string, attempt int, maxAttempts int, err error)
	OnRetryExhausted(ctx context.Context, st *TaskState, role string, err error)
}

// NopHook lets you implement any hook you need.
type NopHook struct{}

func (NopHook) OnTaskInit(context.Context, *TaskState)                                  {}
func (NopHook) OnStepStart(context.Context, *TaskState, *Step)                          {}
func (NopHook) OnBeforeLLM(context.Context, *TaskState, string, []ChatMessage)          {}
func (NopHook) OnAfterLLM(context.Context, *TaskState, string, LLMResponse)             {}
func (NopHook) OnAbilityCall(context.Context, *TaskState, AbilityCall)                  {}
func (NopHook) OnAbilityResult(context.Context, *TaskState, AbilityCall, string, error) {}
func (NopHook) OnPlanUpdated(context.Context, *TaskState, string)                       {}
func (NopHook) OnStepDone(context.Context, *TaskState, *Step)                           {}
func (NopHook) OnRetryAttempt(context.Context, *TaskState, string, int, int, error)     {}
func (NopHook) OnRetryExhausted(context.Context, *TaskState, string, error)             {}
