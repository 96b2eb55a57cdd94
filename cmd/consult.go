package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/spf13/cobra"
)

func newConsultCmd(app *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "consult <task>",
		Short: "Start the service, run one consultation and stop it again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireService(); err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = app.consultTimeout
			}

			task := strings.Join(args, " ")
			var result domain.ConsultResult
			err := runWithProgress(cmd.Context(), cmd.ErrOrStderr(), "Consulting...", timeout, func(ctx context.Context) error {
				var err error
				result, err = app.coordinator.Consult(ctx, task, timeout)
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Consultation %s\n", result.Status)
			if result.Response != "" {
				fmt.Fprintln(out, result.Response)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Consultation timeout (default consult.timeout)")

	return cmd
}
