package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type setter func(cfg *Config, value string) error

func stringSetter(field func(*Config) *string) setter {
	return func(cfg *Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func durationSetter(field func(*Config) *Duration) setter {
	return func(cfg *Config, value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*field(cfg) = Duration(d)
		return nil
	}
}

func boolSetter(field func(*Config) *bool) setter {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

// setters is keyed by the JSON field names.
var setters = map[string]setter{
	"llm_provider":       stringSetter(func(c *Config) *string { return &c.LLMProvider }),
	"api_key":            stringSetter(func(c *Config) *string { return &c.APIKey }),
	"model":              stringSetter(func(c *Config) *string { return &c.Model }),
	"planner_model":      stringSetter(func(c *Config) *string { return &c.PlannerModel }),
	"base_url":           stringSetter(func(c *Config) *string { return &c.BaseURL }),
	"variant":            stringSetter(func(c *Config) *string { return &c.Variant }),
	"ability_failure":    stringSetter(func(c *Config) *string { return &c.AbilityFailure }),
	"data_dir":           stringSetter(func(c *Config) *string { return &c.DataDir }),
	"listen_addr":        stringSetter(func(c *Config) *string { return &c.ListenAddr }),
	"log_level":          stringSetter(func(c *Config) *string { return &c.LogLevel }),
	"prompt_dir":         stringSetter(func(c *Config) *string { return &c.PromptDir }),
	"retry_delay":        durationSetter(func(c *Config) *Duration { return &c.RetryDelay }),
	"completion_timeout": durationSetter(func(c *Config) *Duration { return &c.CompletionTimeout }),
	"ability_timeout":    durationSetter(func(c *Config) *Duration { return &c.AbilityTimeout }),
	"log_json":           boolSetter(func(c *Config) *bool { return &c.LogJSON }),
	"disable_web":        boolSetter(func(c *Config) *bool { return &c.DisableWeb }),
	"retry_attempts": func(c *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.RetryAttempts = n
		return nil
	},
}

// Keys lists the settable keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns one field by its JSON name and validates the result.
func (c *Config) Set(key, value string) error {
	set, ok := setters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	next := *c
	if err := set(&next, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if n := len(c.APIKey); n > 0 {
		if n > 8 {
			c.APIKey = c.APIKey[:4] + strings.Repeat("*", n-8) + c.APIKey[n-4:]
		} else {
			c.APIKey = strings.Repeat("*", n)
		}
	}
	return c
}
