package engine

import (
	"fmt"
	"time"

	"github.com/ChamsBouzaiene/asimov/internal/logger"
)

// ControllerBuilder helps construct a Controller with a fluent API.
type ControllerBuilder struct {
	variant   Variant
	config    ControllerConfig
	llm       LLMClient
	tasks     TaskStore
	states    StateStore
	abilities Dispatcher
	prompts   PromptRenderer
	hooks     Hooks
}

// NewControllerBuilder creates a builder for the given variant with that
// variant's default configuration.
func NewControllerBuilder(variant Variant) *ControllerBuilder {
	cfg := DefaultControllerConfig()
	if variant == VariantPlannerActor {
		cfg = DefaultPlannerActorConfig()
	}
	return &ControllerBuilder{variant: variant, config: cfg}
}

// WithConfig replaces the whole controller configuration.
func (b *ControllerBuilder) WithConfig(cfg ControllerConfig) *ControllerBuilder {
	b.config = cfg
	return b
}

// WithModel sets the model name.
func (b *ControllerBuilder) WithModel(model string) *ControllerBuilder {
	b.config.Model = model
	return b
}

// WithPlannerModel sets the planner's model. Ignored by the single-role controller.
func (b *ControllerBuilder) WithPlannerModel(model string) *ControllerBuilder {
	b.config.PlannerModel = model
	return b
}

// WithRetryPolicy sets the completion retry policy.
func (b *ControllerBuilder) WithRetryPolicy(p RetryPolicy) *ControllerBuilder {
	b.config.Retry = p
	return b
}

// WithTimeouts sets the completion and ability deadlines.
func (b *ControllerBuilder) WithTimeouts(completion, ability time.Duration) *ControllerBuilder {
	b.config.CompletionTimeout = completion
	b.config.AbilityTimeout = ability
	return b
}

// WithAbilityFailure sets what a failed ability does to the step.
func (b *ControllerBuilder) WithAbilityFailure(p AbilityFailurePolicy) *ControllerBuilder {
	b.config.AbilityFailure = p
	return b
}

// WithLLM sets the LLM client.
func (b *ControllerBuilder) WithLLM(llm LLMClient) *ControllerBuilder {
	b.llm = llm
	return b
}

// WithStore sets both the step store and the state store.
func (b *ControllerBuilder) WithStore(s interface {
	TaskStore
	StateStore
}) *ControllerBuilder {
	b.tasks = s
	b.states = s
	return b
}

// WithAbilities sets the ability dispatcher.
func (b *ControllerBuilder) WithAbilities(d Dispatcher) *ControllerBuilder {
	b.abilities = d
	return b
}

// WithPrompts sets the prompt renderer.
func (b *ControllerBuilder) WithPrompts(p PromptRenderer) *ControllerBuilder {
	b.prompts = p
	return b
}

// WithHooks sets custom hooks.
func (b *ControllerBuilder) WithHooks(hooks Hooks) *ControllerBuilder {
	b.hooks = hooks
	return b
}

// Build constructs the controller.
func (b *ControllerBuilder) Build() (Controller, error) {
	if b.hooks == nil {
		b.hooks = Hooks{LoggerHook{L: logger.GetDefault()}}
	}
	switch b.variant {
	case VariantSingle, "":
		return NewStepController(b.llm, b.tasks, b.states, b.abilities, b.prompts, b.config, b.hooks)
	case VariantPlannerActor:
		return NewPlannerActorController(b.llm, b.tasks, b.states, b.abilities, b.prompts, b.config, b.hooks)
	default:
		return nil, fmt.Errorf("unknown controller variant %q", b.variant)
	}
}
