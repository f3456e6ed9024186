package main

import (
	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/asimov/internal/config"
	"github.com/ChamsBouzaiene/asimov/internal/logger"
)

// globalFlags override the config file and environment when set.
type globalFlags struct {
	configDir    string
	provider     string
	model        string
	plannerModel string
	variant      string
	dataDir      string
	promptDir    string
	logLevel     string
	logJSON      bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "asimov",
		Short: "Asimov - an LLM agent that works one step at a time",
		Long: `Asimov drives a language model through tasks one step at a time. Each step
asks the model for its next ability, runs it and records the result. Tasks can
be served over the Agent Protocol HTTP API or run from the command line.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "directory holding config.json (default: user config dir)")
	pf.StringVar(&flags.provider, "provider", "", "LLM provider (openai, anthropic, ollama, ...)")
	pf.StringVar(&flags.model, "model", "", "model used for completions")
	pf.StringVar(&flags.plannerModel, "planner-model", "", "model used by the planner (planner_actor only)")
	pf.StringVar(&flags.variant, "variant", "", "step controller: single or planner_actor")
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory for the database and task workspaces")
	pf.StringVar(&flags.promptDir, "prompt-dir", "", "directory of .tmpl files overriding the built-in prompts")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&flags.logJSON, "log-json", false, "log as JSON")

	root.AddCommand(newServeCmd(flags), newRunCmd(flags), newConfigCmd(flags))
	return root
}

func (f *globalFlags) manager() (*config.Manager, error) {
	if f.configDir != "" {
		return config.NewManagerAt(f.configDir), nil
	}
	return config.NewManager()
}

// resolve loads the effective configuration and initialises logging.
func (f *globalFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	m, err := f.manager()
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Resolve(m)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	overrides := map[string]string{
		"provider":      f.provider,
		"model":         f.model,
		"planner-model": f.plannerModel,
		"variant":       f.variant,
		"data-dir":      f.dataDir,
		"prompt-dir":    f.promptDir,
		"log-level":     f.logLevel,
	}
	keys := map[string]string{
		"provider":      "llm_provider",
		"model":         "model",
		"planner-model": "planner_model",
		"variant":       "variant",
		"data-dir":      "data_dir",
		"prompt-dir":    "prompt_dir",
		"log-level":     "log_level",
	}
	for flag, value := range overrides {
		if changed(flag) {
			if err := cfg.Set(keys[flag], value); err != nil {
				return config.Config{}, err
			}
		}
	}
	if changed("log-json") {
		cfg.LogJSON = f.logJSON
	}
	cfg = cfg.WithDefaults()

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logCfg.JSON = cfg.LogJSON
	logger.Init(logCfg)
	return cfg, nil
}
