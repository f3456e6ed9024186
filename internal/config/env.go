package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ASIMOV_"

// LoadDotEnv loads .env style files into the process environment without
// replacing variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with ASIMOV_* environment variables.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"PROVIDER":        &cfg.LLMProvider,
		"API_KEY":         &cfg.APIKey,
		"MODEL":           &cfg.Model,
		"PLANNER_MODEL":   &cfg.PlannerModel,
		"BASE_URL":        &cfg.BaseURL,
		"VARIANT":         &cfg.Variant,
		"ABILITY_FAILURE": &cfg.AbilityFailure,
		"DATA_DIR":        &cfg.DataDir,
		"LISTEN_ADDR":     &cfg.ListenAddr,
		"LOG_LEVEL":       &cfg.LogLevel,
		"PROMPT_DIR":      &cfg.PromptDir,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"RETRY_DELAY":        &cfg.RetryDelay,
		"COMPLETION_TIMEOUT": &cfg.CompletionTimeout,
		"ABILITY_TIMEOUT":    &cfg.AbilityTimeout,
	}
	for key, dst := range durations {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = Duration(d)
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "RETRY_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRETRY_ATTEMPTS: %w", EnvPrefix, err)
		}
		cfg.RetryAttempts = n
	}

	bools := map[string]*bool{
		"LOG_JSON":    &cfg.LogJSON,
		"DISABLE_WEB": &cfg.DisableWeb,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Resolve loads the config file, applies .env and environment overrides,
// fills defaults and validates the result.
func Resolve(m *Manager) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	cfg, err := m.Load()
	if err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return Config{}, err
	}
	out := cfg.WithDefaults()
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}
