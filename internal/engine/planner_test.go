package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	initialPlanReply = `{"thoughts":{"plan":"1. scrape the page"}}`
	nextPlanReply    = `{"thoughts":{"plan":"2. finish"}}`
)

type plannerFixture struct {
	llm       *scriptedLLM
	store     *memStore
	abilities *fakeAbilities
	ctrl      *PlannerActorController
	task      *Task
}

func plannerConfig(policy AbilityFailurePolicy, singleStep bool) ControllerConfig {
	cfg := DefaultPlannerActorConfig()
	cfg.Model = "actor-model"
	cfg.PlannerModel = "planner-model"
	cfg.AbilityFailure = policy
	cfg.SingleStep = singleStep
	cfg.CompletionTimeout = 0
	cfg.AbilityTimeout = 0
	return cfg
}

func newPlannerFixture(t *testing.T, cfg ControllerConfig, script []scriptedReply) *plannerFixture {
	t.Helper()
	f := &plannerFixture{
		llm:   &scriptedLLM{replies: script},
		store: newMemStore(),
		abilities: &fakeAbilities{
			outputs: map[string]string{"scrape_web": "Example Domain"},
			errs:    map[string]error{},
			flaky:   map[string]int{},
		},
	}
	ctrl, err := NewPlannerActorController(f.llm, f.store, f.store, f.abilities, fakePrompts{}, cfg, nil)
	require.NoError(t, err)
	f.ctrl = ctrl
	f.task = f.store.addTask("task-1", "Summarize https://example.com")
	return f
}

func (f *plannerFixture) init(t *testing.T) {
	t.Helper()
	require.NoError(t, f.ctrl.InitTask(context.Background(), f.task))
}

func TestPlannerActor_InitTask(t *testing.T) {
	f := newPlannerFixture(t, plannerConfig(AbilityFailureRetry, true), replies(initialPlanReply))
	f.init(t)

	assert.Equal(t, 1, f.llm.Calls())
	assert.Equal(t, []string{"planner-model"}, f.llm.models)

	st := f.store.state("task-1")
	require.NotNil(t, st)
	assert.Equal(t, VariantPlannerActor, st.Variant)
	assert.Equal(t, "1. scrape the page", st.Plan)

	// The planner's own reply is not kept.
	require.Len(t, st.Planner.Messages, 2)
	assert.Equal(t, "system-format_planner|abilities=- finish(reason: string) -> None", st.Planner.Messages[0].Content)
	assert.Equal(t, "task-intro_planner|task=Summarize https://example.com", st.Planner.Messages[1].Content)

	require.Len(t, st.Actor.Messages, 2)
	assert.Equal(t, RoleSystem, st.Actor.Messages[0].Role)
	assert.Equal(t, "system-format_actor|abilities=- finish(reason: string) -> None", st.Actor.Messages[0].Content)
	assert.Equal(t, "task-intro_actor|task=Summarize https://example.com|plan=1. scrape the page", st.Actor.Messages[1].Content)
}

func TestPlannerActor_InitTaskRetriesMissingPlan(t *testing.T) {
	script := replies(`{"thoughts":{"text":"no plan yet"}}`, "garbage", initialPlanReply)
	f := newPlannerFixture(t, plannerConfig(AbilityFailureRetry, true), script)
	f.init(t)

	assert.Equal(t, 3, f.llm.Calls())
	assert.Equal(t, "1. scrape the page", f.store.state("task-1").Plan)
}

func TestPlannerActor_InitTaskFailsWithoutPlan(t *testing.T) {
	script := replies(`{}`, `{"thoughts":{}}`, `{"thoughts":"just text"}`)
	f := newPlannerFixture(t, plannerConfig(AbilityFailureRetry, true), script)

	err := f.ctrl.InitTask(context.Background(), f.task)
	require.Error(t, err)
	assert.True(t, IsRetryExhausted(err))
	assert.True(t, errors.Is(err, ErrMissingPlan))
	assert.Equal(t, 3, f.llm.Calls())
	assert.Nil(t, f.store.state("task-1"))
}

func TestPlannerActor_ExecuteStep(t *testing.T) {
	f := newPlannerFixture(t, plannerConfig(AbilityFailureRetry, true), replies(initialPlanReply, scrapeReply, nextPlanReply))
	f.init(t)

	step, err := f.ctrl.ExecuteStep(context.Background(), "task-1", "")
	require.NoError(t, err)
	assert.True(t, step.IsLast, "single-step mode ends every step")
	assert.Equal(t, "Fetching page", step.Output)
	assert.Equal(t, []string{"planner-model", "actor-model", "planner-model"}, f.llm.models)

	calls := f.abilities.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "scrape_web", calls[0].Name)

	st := f.store.state("task-1")
	assert.Equal(t, "2. finish", st.Plan)

	require.Len(t, st.Planner.Messages, 3)
	assert.Equal(t, ChatMessage{Role: RoleUser, Content: "user-step_planner|step_output=" + scrapeReply}, st.Planner.Messages[2])

	require.Len(t, st.Actor.Messages, 5)
	assert.Equal(t, scrapeReply, st.Actor.Messages[2].Content)
	assert.Equal(t, `Here is the output of the ability scrape_web applied to {"url":"https://example.com"}: Example Domain`, st.Actor.Messages[3].Content)
	assert.Equal(t, ChatMessage{Role: RoleUser, Content: "user-step_actor|plan=2. finish"}, st.Actor.Messages[4])
}

func TestPlannerActor_MultiStep(t *testing.T) {
	script := replies(initialPlanReply, scrapeReply, nextPlanReply, finishReply, `{"thoughts":{"plan":"done"}}`)
	f := newPlannerFixture(t, plannerConfig(AbilityFailureRetry, false), script)
	f.init(t)
	ctx := context.Background()

	step, err := f.ctrl.ExecuteStep(ctx, "task-1", "")
	require.NoError(t, err)
	assert.False(t, step.IsLast)

	step, err = f.ctrl.ExecuteStep(ctx, "task-1", "")
	require.NoError(t, err)
	assert.True(t, step.IsLast)
	assert.Equal(t, "Done", step.Output)

	st := f.store.state("task-1")
	assert.Equal(t, 2, st.Steps)
	assert.Equal(t, "done", st.Plan)
	// 2 seed + (answer, summary, plan) + (answer, plan); finish produced no output.
	assert.Len(t, st.Actor.Messages, 7)
	assert.Len(t, st.Planner.Messages, 4)
}

func TestPlannerActor_AbilityFailurePolicies(t *testing.T) {
	t.Run("retry re-asks the actor", func(t *testing.T) {
		script := replies(initialPlanReply, scrapeReply, scrapeReply, nextPlanReply)
		f := newPlannerFixture(t, plannerConfig(AbilityFailureRetry, false), script)
		f.abilities.flaky["scrape_web"] = 1
		f.init(t)

		step, err := f.ctrl.ExecuteStep(context.Background(), "task-1", "")
		require.NoError(t, err)
		assert.False(t, step.IsLast)
		assert.Equal(t, 4, f.llm.Calls())
		assert.Len(t, f.abilities.Calls(), 2)
	})

	t.Run("retry gives up after the last attempt", func(t *testing.T) {
		script := replies(initialPlanReply, scrapeReply, scrapeReply, scrapeReply, nextPlanReply)
		f := newPlannerFixture(t, plannerConfig(AbilityFailureRetry, false), script)
		f.abilities.errs["scrape_web"] = errors.New("network unreachable")
		f.init(t)

		_, err := f.ctrl.ExecuteStep(context.Background(), "task-1", "")
		require.Error(t, err)
		assert.True(t, IsRetryExhausted(err))
		assert.True(t, IsAbilityError(err))
		assert.Equal(t, 4, f.llm.Calls(), "1 initial plan + 3 actor attempts")
	})

	t.Run("terminate ends the task", func(t *testing.T) {
		script := replies(initialPlanReply, scrapeReply, nextPlanReply)
		f := newPlannerFixture(t, plannerConfig(AbilityFailureTerminate, false), script)
		f.abilities.errs["scrape_web"] = errors.New("network unreachable")
		f.init(t)

		step, err := f.ctrl.ExecuteStep(context.Background(), "task-1", "")
		require.NoError(t, err)
		assert.True(t, step.IsLast)
		assert.Equal(t, 3, f.llm.Calls())
	})
}

func TestPlannerActor_PlannerFailureFailsStep(t *testing.T) {
	script := replies(initialPlanReply, scrapeReply, "x", "y", "z")
	f := newPlannerFixture(t, plannerConfig(AbilityFailureRetry, true), script)
	f.init(t)

	_, err := f.ctrl.ExecuteStep(context.Background(), "task-1", "")
	require.Error(t, err)
	var sce *StepContextError
	require.True(t, errors.As(err, &sce))
	assert.Equal(t, rolePlanner, sce.Role)
	assert.Equal(t, 5, f.llm.Calls())

	failed := f.store.step(sce.StepID)
	require.NotNil(t, failed)
	assert.Equal(t, StepFailed, failed.Status)
}

func TestPlannerActor_SeedsUnseededTask(t *testing.T) {
	f := newPlannerFixture(t, plannerConfig(AbilityFailureTerminate, true), replies(initialPlanReply, scrapeReply, nextPlanReply))

	step, err := f.ctrl.ExecuteStep(context.Background(), "task-1", "")
	require.NoError(t, err)
	assert.Equal(t, "Fetching page", step.Output)
	assert.Equal(t, 3, f.llm.Calls(), "initial plan, actor, planner")

	st := f.store.state("task-1")
	require.NotNil(t, st)
	assert.Equal(t, "2. finish", st.Plan)
	assert.Equal(t, 1, st.Steps)
}

func TestControllerBuilder(t *testing.T) {
	store := newMemStore()

	ctrl, err := NewControllerBuilder(VariantPlannerActor).
		WithLLM(&scriptedLLM{}).
		WithStore(store).
		WithAbilities(&fakeAbilities{}).
		WithPrompts(fakePrompts{}).
		WithHooks(Hooks{NopHook{}}).
		Build()
	require.NoError(t, err)
	assert.Equal(t, VariantPlannerActor, ctrl.Variant())

	ctrl, err = NewControllerBuilder(VariantSingle).
		WithLLM(&scriptedLLM{}).
		WithStore(store).
		WithAbilities(&fakeAbilities{}).
		WithPrompts(fakePrompts{}).
		Build()
	require.NoError(t, err)
	assert.Equal(t, VariantSingle, ctrl.Variant())

	_, err = NewControllerBuilder(VariantSingle).WithStore(store).Build()
	assert.EqualError(t, err, "LLM client not configured")

	_, err = NewControllerBuilder("triple").
		WithLLM(&scriptedLLM{}).
		WithStore(store).
		WithAbilities(&fakeAbilities{}).
		WithPrompts(fakePrompts{}).
		Build()
	assert.ErrorContains(t, err, "unknown controller variant")
}
