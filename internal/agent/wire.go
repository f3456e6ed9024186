package agent

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/asimov/internal/abilities"
	"github.com/ChamsBouzaiene/asimov/internal/config"
	"github.com/ChamsBouzaiene/asimov/internal/engine"
	"github.com/ChamsBouzaiene/asimov/internal/prompts"
	"github.com/ChamsBouzaiene/asimov/internal/providers"
	"github.com/ChamsBouzaiene/asimov/internal/store"
	"github.com/ChamsBouzaiene/asimov/internal/workspace"
)

// Option customises FromConfig.
type Option func(*wiring)

type wiring struct {
	llm   engine.LLMClient
	hooks engine.Hooks
	web   *abilities.Web
	watch bool
}

// WithLLM uses llm instead of building a provider client from the config.
func WithLLM(llm engine.LLMClient) Option {
	return func(w *wiring) { w.llm = llm }
}

// WithHooks replaces the controller's default logging hooks.
func WithHooks(hooks engine.Hooks) Option {
	return func(w *wiring) { w.hooks = hooks }
}

// WithWeb sets the client used by the browsing abilities.
func WithWeb(web *abilities.Web) Option {
	return func(w *wiring) { w.web = web }
}

// WithPromptWatch reloads prompt overrides while ctx is alive.
func WithPromptWatch() Option {
	return func(w *wiring) { w.watch = true }
}

// FromConfig opens the store and workspace under cfg.DataDir and builds the
// controller variant cfg selects. Close the agent when done.
func FromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Agent, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &wiring{}
	for _, opt := range opts {
		opt(w)
	}

	llm := w.llm
	if llm == nil {
		var err error
		llm, err = providers.NewLLMClient(providers.Options{
			Provider: cfg.LLMProvider,
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
	}

	pe, err := prompts.NewEngine(cfg.PromptDir)
	if err != nil {
		return nil, err
	}
	if w.watch {
		if err := pe.Watch(ctx, 0); err != nil {
			return nil, err
		}
	}

	s, err := store.Open(ctx, cfg.DBPath())
	if err != nil {
		return nil, err
	}
	ws, err := workspace.NewLocal(cfg.WorkspaceDir())
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	web := w.web
	if web == nil && !cfg.DisableWeb {
		web = abilities.NewWeb(abilities.DefaultWebConfig())
	}
	registry := abilities.NewDefaultRegistry(ws, s, web)

	b := engine.NewControllerBuilder(engine.Variant(cfg.Variant)).
		WithConfig(cfg.ControllerConfig()).
		WithLLM(llm).
		WithStore(s).
		WithAbilities(registry).
		WithPrompts(pe)
	if w.hooks != nil {
		b = b.WithHooks(w.hooks)
	}
	controller, err := b.Build()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("build controller: %w", err)
	}

	a, err := New(s, ws, controller)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	return a, nil
}
