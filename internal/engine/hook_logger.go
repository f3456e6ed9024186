// engine/hook_logger.go
package engine

import (
	"context"

	"github.com/ChamsBouzaiene/asimov/internal/logger"
)

type LoggerHook struct{ L logger.Logger }

func (h LoggerHook) OnTaskInit(_ context.Context, st *TaskState) {
	h.L.Info("task initialised", "task_id", st.TaskID, "variant", st.Variant)
}
func (h LoggerHook) OnStepStart(_ context.Context, st *TaskState, step *Step) {
	h.L.Info("step created", "task_id", st.TaskID, "step_id", step.StepID, "input", preview(step.Input, 80))
}
func (h LoggerHook) OnBeforeLLM(_ context.Context, st *TaskState, role string, msgs []ChatMessage) {
	h.L.Debug("chat completion request", "task_id", st.TaskID, "role", role, "messages", len(msgs))
	for _, m := range msgs {
		h.L.Debug("message", "role", m.Role, "content", preview(m.Content, 200))
	}
}
func (h LoggerHook) OnAfterLLM(_ context.Context, st *TaskState, role string, r LLMResponse) {
	h.L.Debug("chat completion response", "task_id", st.TaskID, "role", role,
		"finish", r.FinishReason, "prompt_tokens", r.Usage.Prompt,
		"completion_tokens", r.Usage.Completion, "cumulative", st.Totals.Total)
}
func (h LoggerHook) OnAbilityCall(_ context.Context, st *TaskState, c AbilityCall) {
	h.L.Info("running ability", "task_id", st.TaskID, "ability", c.Name, "args", c.Args)
}
func (h LoggerHook) OnAbilityResult(_ context.Context, st *TaskState, c AbilityCall, out string, err error) {
	if err != nil {
		h.L.Error("unable to run ability", "task_id", st.TaskID, "ability", c.Name, "err", err)
		return
	}
	h.L.Info("ability finished", "task_id", st.TaskID, "ability", c.Name, "output", preview(out, 100))
}
func (h LoggerHook) OnPlanUpdated(_ context.Context, st *TaskState, plan string) {
	h.L.Info("plan updated", "task_id", st.TaskID, "plan", preview(plan, 200))
}
func (h LoggerHook) OnStepDone(_ context.Context, st *TaskState, step *Step) {
	h.L.Info("step completed", "task_id", st.TaskID, "step_id", step.StepID,
		"is_last", step.IsLast, "steps", st.Steps, "tokens", st.Totals.Total)
}
func (h LoggerHook) OnRetryAttempt(_ context.Context, st *TaskState, role string, attempt int, maxAttempts int, err error) {
	h.L.Warn("completion attempt failed", "task_id", st.TaskID, "role", role,
		"attempt", attempt, "max_attempts", maxAttempts, "err", err)
}
func (h LoggerHook) OnRetryExhausted(_ context.Context, st *TaskState, role string, err error) {
	h.L.Error("retries exhausted", "task_id", st.TaskID, "role", role, "err", err)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
