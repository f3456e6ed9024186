package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/asimov/internal/engine"
)

func TestManager_SaveLoad(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "asimov"))
	assert.False(t, m.Exists())

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)

	want := &Config{
		LLMProvider:       "anthropic",
		APIKey:            "sk-ant",
		Variant:           "planner_actor",
		RetryDelay:        Duration(500 * time.Millisecond),
		CompletionTimeout: Duration(90 * time.Second),
	}
	require.NoError(t, m.Save(want))
	assert.True(t, m.Exists())

	info, err := os.Stat(m.GetConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(m.GetConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"completion_timeout": "1m30s"`)

	got, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestManager_LoadInvalid(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	require.NoError(t, os.WriteFile(m.GetConfigPath(), []byte("{"), 0o600))
	_, err := m.Load()
	assert.ErrorContains(t, err, "failed to parse config json")
}

func TestDuration_UnmarshalSeconds(t *testing.T) {
	var c Config
	require.NoError(t, json.Unmarshal([]byte(`{"ability_timeout": 30, "retry_delay": "2s"}`), &c))
	assert.Equal(t, Duration(30*time.Second), c.AbilityTimeout)
	assert.Equal(t, Duration(2*time.Second), c.RetryDelay)

	assert.Error(t, json.Unmarshal([]byte(`{"retry_delay": "soon"}`), &c))
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	assert.Equal(t, "openai", c.LLMProvider)
	assert.Equal(t, "single", c.Variant)
	assert.Equal(t, "gpt-4", c.Model)
	assert.Equal(t, DefaultRetryAttempts, c.RetryAttempts)
	assert.Equal(t, "terminate", c.AbilityFailure)
	assert.Equal(t, DefaultListenAddr, c.ListenAddr)
	assert.NotEmpty(t, c.DataDir)
	assert.Equal(t, filepath.Join(c.DataDir, "agent.db"), c.DBPath())

	pa := Config{Variant: "planner_actor"}.WithDefaults()
	assert.Equal(t, "gpt-3.5-turbo", pa.Model)
	assert.Equal(t, "retry", pa.AbilityFailure)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty", cfg: Config{}},
		{name: "defaults", cfg: Config{}.WithDefaults()},
		{name: "bad variant", cfg: Config{Variant: "swarm"}, wantErr: "invalid variant"},
		{name: "bad policy", cfg: Config{AbilityFailure: "ignore"}, wantErr: "invalid ability_failure"},
		{name: "too many retries", cfg: Config{RetryAttempts: 11}, wantErr: "retry_attempts"},
		{name: "negative timeout", cfg: Config{AbilityTimeout: -1}, wantErr: "negative"},
		{name: "bad log level", cfg: Config{LogLevel: "loud"}, wantErr: "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ControllerConfig(t *testing.T) {
	cc := Config{
		Variant:        "planner_actor",
		Model:          "gpt-4o",
		PlannerModel:   "gpt-4o-mini",
		RetryAttempts:  5,
		RetryDelay:     Duration(time.Second),
		AbilityTimeout: Duration(10 * time.Second),
		AbilityFailure: "terminate",
	}.ControllerConfig()

	assert.Equal(t, "gpt-4o", cc.Model)
	assert.Equal(t, "gpt-4o-mini", cc.PlannerModel)
	assert.Equal(t, 5, cc.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cc.Retry.Delay)
	assert.Equal(t, 10*time.Second, cc.AbilityTimeout)
	assert.Equal(t, engine.AbilityFailureTerminate, cc.AbilityFailure)
	assert.True(t, cc.SingleStep)
	require.NoError(t, cc.Validate())

	single := Config{}.ControllerConfig()
	assert.Equal(t, engine.DefaultControllerConfig(), single)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ASIMOV_PROVIDER", "groq")
	t.Setenv("ASIMOV_VARIANT", "planner_actor")
	t.Setenv("ASIMOV_RETRY_ATTEMPTS", "4")
	t.Setenv("ASIMOV_ABILITY_TIMEOUT", "15s")
	t.Setenv("ASIMOV_LOG_JSON", "true")

	cfg := &Config{LLMProvider: "openai", Model: "kept"}
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "groq", cfg.LLMProvider)
	assert.Equal(t, "planner_actor", cfg.Variant)
	assert.Equal(t, 4, cfg.RetryAttempts)
	assert.Equal(t, Duration(15*time.Second), cfg.AbilityTimeout)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "kept", cfg.Model)

	t.Setenv("ASIMOV_RETRY_ATTEMPTS", "three")
	assert.ErrorContains(t, ApplyEnv(cfg), "ASIMOV_RETRY_ATTEMPTS")
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(".env", []byte("ASIMOV_MODEL=from-dotenv\n"), 0o600))
	t.Setenv("ASIMOV_MODEL", "")
	os.Unsetenv("ASIMOV_MODEL")

	m := NewManagerAt(filepath.Join(dir, "cfg"))
	require.NoError(t, m.Save(&Config{Variant: "single", DataDir: dir}))

	cfg, err := Resolve(m)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Model)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "openai", cfg.LLMProvider)

	require.NoError(t, m.Save(&Config{Variant: "bogus"}))
	_, err = Resolve(m)
	assert.Error(t, err)
}

func TestConfig_Set(t *testing.T) {
	var c Config
	require.NoError(t, c.Set("variant", "planner_actor"))
	require.NoError(t, c.Set("Retry_Attempts", "5"))
	require.NoError(t, c.Set("ability_timeout", "45s"))
	assert.Error(t, c.Set("log_json", "yes"), "yes is not a bool")
	assert.Equal(t, "planner_actor", c.Variant)
	assert.Equal(t, 5, c.RetryAttempts)
	assert.Equal(t, Duration(45*time.Second), c.AbilityTimeout)

	assert.ErrorContains(t, c.Set("colour", "blue"), "unknown config key")
	assert.ErrorContains(t, c.Set("variant", "swarm"), "invalid variant")
	assert.Equal(t, "planner_actor", c.Variant, "failed set leaves config unchanged")
	assert.ErrorContains(t, c.Set("retry_attempts", "lots"), "invalid value")
	assert.Contains(t, Keys(), "api_key")
}

func TestConfig_Redacted(t *testing.T) {
	assert.Equal(t, "sk-a*****wxyz", Config{APIKey: "sk-abcdefwxyz"}.Redacted().APIKey)
	assert.Equal(t, "*****", Config{APIKey: "short"}.Redacted().APIKey)
	assert.Empty(t, Config{}.Redacted().APIKey)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
