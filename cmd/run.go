package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/bnema/assistant-continuity/internal/application"
	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(app *app) *cobra.Command {
	var name string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a supervised child process",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("run requires a command after '--'")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = filepath.Base(args[0])
			}

			var opts []application.LaunchOption
			if timeout > 0 {
				opts = append(opts, application.WithTimeout(timeout))
			}

			defer terminateChildren(app)

			result, err := app.orchestrator.Run(cmd.Context(), name, args[0], args[1:], opts...)
			writeTaskOutput(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Task name (default: command base name)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Kill the process after this long")

	return cmd
}

func writeTaskOutput(stdout, stderr io.Writer, result domain.TaskResult) {
	if result.Stdout != "" {
		_, _ = io.WriteString(stdout, result.Stdout)
	}
	if result.Stderr != "" {
		_, _ = io.WriteString(stderr, result.Stderr)
	}
}

// terminateChildren stops anything still running when the command returns,
// which happens when the command context is canceled by a signal.
func terminateChildren(app *app) {
	if err := app.orchestrator.TerminateAll(context.Background()); err != nil {
		app.logger.Error("terminate child tasks", zap.Error(err))
	}
}
