// Package config holds the agent's persistent settings: a JSON file in the
// user config directory, overridden by environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/asimov/internal/engine"
)

// Config holds the user's configuration.
type Config struct {
	LLMProvider       string   `json:"llm_provider,omitempty"` // openai, anthropic, ollama, ...
	APIKey            string   `json:"api_key,omitempty"`
	Model             string   `json:"model,omitempty"`
	PlannerModel      string   `json:"planner_model,omitempty"`
	BaseURL           string   `json:"base_url,omitempty"`
	Variant           string   `json:"variant,omitempty"` // single | planner_actor
	RetryAttempts     int      `json:"retry_attempts,omitempty"`
	RetryDelay        Duration `json:"retry_delay,omitempty"`
	CompletionTimeout Duration `json:"completion_timeout,omitempty"`
	AbilityTimeout    Duration `json:"ability_timeout,omitempty"`
	AbilityFailure    string   `json:"ability_failure,omitempty"` // terminate | retry
	DataDir           string   `json:"data_dir,omitempty"`
	ListenAddr        string   `json:"listen_addr,omitempty"`
	LogLevel          string   `json:"log_level,omitempty"`
	LogJSON           bool     `json:"log_json,omitempty"`
	PromptDir         string   `json:"prompt_dir,omitempty"`
	DisableWeb        bool     `json:"disable_web,omitempty"`
}

const (
	DefaultListenAddr    = ":8000"
	DefaultRetryAttempts = 3
	maxRetryAttempts     = 10
)

// WithDefaults returns a copy with every unset field filled in.
func (c Config) WithDefaults() Config {
	if c.LLMProvider == "" {
		c.LLMProvider = "openai"
	}
	if c.Variant == "" {
		c.Variant = string(engine.VariantSingle)
	}
	base := c.baseController()
	if c.Model == "" {
		c.Model = base.Model
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.CompletionTimeout == 0 {
		c.CompletionTimeout = Duration(base.CompletionTimeout)
	}
	if c.AbilityTimeout == 0 {
		c.AbilityTimeout = Duration(base.AbilityTimeout)
	}
	if c.AbilityFailure == "" {
		c.AbilityFailure = string(base.AbilityFailure)
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".asimov")
	}
	return ".asimov"
}

func (c Config) baseController() engine.ControllerConfig {
	if engine.Variant(c.Variant) == engine.VariantPlannerActor {
		return engine.DefaultPlannerActorConfig()
	}
	return engine.DefaultControllerConfig()
}

// Validate checks enums and ranges. Unset fields are valid.
func (c Config) Validate() error {
	switch engine.Variant(c.Variant) {
	case "", engine.VariantSingle, engine.VariantPlannerActor:
	default:
		return fmt.Errorf("invalid variant %q: want single or planner_actor", c.Variant)
	}
	if c.AbilityFailure != "" && !engine.AbilityFailurePolicy(c.AbilityFailure).Valid() {
		return fmt.Errorf("invalid ability_failure %q: want terminate or retry", c.AbilityFailure)
	}
	if c.RetryAttempts < 0 || c.RetryAttempts > maxRetryAttempts {
		return fmt.Errorf("retry_attempts must be between 1 and %d, got %d", maxRetryAttempts, c.RetryAttempts)
	}
	if c.RetryDelay < 0 || c.CompletionTimeout < 0 || c.AbilityTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error", "disabled", "off", "none":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// ControllerConfig converts the settings into the engine's configuration for
// the selected variant.
func (c Config) ControllerConfig() engine.ControllerConfig {
	cfg := c.baseController()
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.PlannerModel != "" {
		cfg.PlannerModel = c.PlannerModel
	}
	if c.RetryAttempts > 0 {
		cfg.Retry.MaxAttempts = c.RetryAttempts
	}
	if c.RetryDelay > 0 {
		cfg.Retry.Delay = time.Duration(c.RetryDelay)
	}
	if c.CompletionTimeout > 0 {
		cfg.CompletionTimeout = time.Duration(c.CompletionTimeout)
	}
	if c.AbilityTimeout > 0 {
		cfg.AbilityTimeout = time.Duration(c.AbilityTimeout)
	}
	if c.AbilityFailure != "" {
		cfg.AbilityFailure = engine.AbilityFailurePolicy(c.AbilityFailure)
	}
	return cfg
}

// DBPath is the sqlite file under the data dir.
func (c Config) DBPath() string { return filepath.Join(c.DataDir, "agent.db") }

// WorkspaceDir is the root of the task workspaces under the data dir.
func (c Config) WorkspaceDir() string { return filepath.Join(c.DataDir, "workspace") }

// Duration is a time.Duration stored as a string such as "90s" in JSON.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Plain numbers are seconds.
		var secs float64
		if err2 := json.Unmarshal(b, &secs); err2 != nil {
			return fmt.Errorf("invalid duration %s", b)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
