package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/asimov/internal/agent"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var maxSteps int
	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run a task to completion from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := agent.FromConfig(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			task, err := a.CreateTask(ctx, strings.Join(args, " "), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "task %s (%s)\n", task.TaskID, a.Variant())

			for i := 1; maxSteps <= 0 || i <= maxSteps; i++ {
				step, err := a.ExecuteStep(ctx, task.TaskID, "")
				if err != nil {
					return fmt.Errorf("step %d: %w", i, err)
				}
				fmt.Fprintf(out, "[%d] %s\n", i, step.Output)
				if step.IsLast {
					fmt.Fprintf(out, "done after %d step(s); workspace: %s\n", i, a.Workspace().TaskDir(task.TaskID))
					return nil
				}
			}
			return fmt.Errorf("task %s not finished after %d steps", task.TaskID, maxSteps)
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 20, "stop after this many steps (0 = no limit)")
	return cmd
}
