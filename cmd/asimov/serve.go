package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/asimov/internal/agent"
	"github.com/ChamsBouzaiene/asimov/internal/logger"
	"github.com/ChamsBouzaiene/asimov/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Agent Protocol HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := agent.FromConfig(ctx, cfg, agent.WithPromptWatch())
			if err != nil {
				return err
			}
			defer a.Close()

			gin.SetMode(gin.ReleaseMode)
			log := logger.GetDefault()
			log.Info("agent ready", "variant", a.Variant(), "provider", cfg.LLMProvider,
				"model", cfg.Model, "data_dir", cfg.DataDir)
			return server.New(a, log).Run(ctx, cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8000)")
	return cmd
}
