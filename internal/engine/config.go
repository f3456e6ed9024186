package engine

import (
	"fmt"
	"time"
)

// AbilityFailurePolicy decides what a failed ability does to a step.
type AbilityFailurePolicy string

const (
	// AbilityFailureTerminate ends the task: the step is marked last and the
	// ability error is suppressed.
	AbilityFailureTerminate AbilityFailurePolicy = "terminate"
	// AbilityFailureRetry feeds the failure back into the completion retry
	// loop, asking the model again.
	AbilityFailureRetry AbilityFailurePolicy = "retry"
)

// Valid reports whether p is a known policy.
func (p AbilityFailurePolicy) Valid() bool {
	return p == AbilityFailureTerminate || p == AbilityFailureRetry
}

// NextStepPrompt primes the single-role conversation for the next step.
const NextStepPrompt = "Okay, what's next? Remember, answer in the provided abilities format."

// Prompt template names used by the controllers.
const (
	PromptSystemFormat        = "system-format"
	PromptTaskStep            = "task-step"
	PromptSystemFormatActor   = "system-format_actor"
	PromptSystemFormatPlanner = "system-format_planner"
	PromptTaskIntroPlanner    = "task-intro_planner"
	PromptTaskIntroActor      = "task-intro_actor"
	PromptUserStepPlanner     = "user-step_planner"
	PromptUserStepActor       = "user-step_actor"
)

// ControllerConfig holds the knobs shared by both step controllers.
type ControllerConfig struct {
	Model             string
	PlannerModel      string // planner/actor only; empty = Model
	Retry             RetryPolicy
	CompletionTimeout time.Duration // 0 = no timeout
	AbilityTimeout    time.Duration // 0 = no timeout
	AbilityFailure    AbilityFailurePolicy
	ChatOptions       ChatOptions
	// SingleStep marks every planner/actor step as last, as the agent always did.
	SingleStep bool
}

// DefaultControllerConfig returns the single-role defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Model:             "gpt-4",
		Retry:             DefaultRetryPolicy(),
		CompletionTimeout: 2 * time.Minute,
		AbilityTimeout:    time.Minute,
		AbilityFailure:    AbilityFailureTerminate,
		ChatOptions:       ChatOptions{JSONMode: true},
	}
}

// DefaultPlannerActorConfig returns the planner/actor defaults.
func DefaultPlannerActorConfig() ControllerConfig {
	cfg := DefaultControllerConfig()
	cfg.Model = "gpt-3.5-turbo"
	cfg.AbilityFailure = AbilityFailureRetry
	cfg.SingleStep = true
	return cfg
}

// Validate checks the config for values the controllers cannot run with.
func (c ControllerConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model not configured")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if !c.AbilityFailure.Valid() {
		return fmt.Errorf("unknown ability failure policy %q", c.AbilityFailure)
	}
	if c.CompletionTimeout < 0 || c.AbilityTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func (c ControllerConfig) plannerModel() string {
	if c.PlannerModel != "" {
		return c.PlannerModel
	}
	return c.Model
}

// retryPolicy returns the policy with RetryAbility tied to the failure policy.
func (c ControllerConfig) retryPolicy() RetryPolicy {
	p := c.Retry
	p.RetryAbility = c.AbilityFailure == AbilityFailureRetry
	return p
}
