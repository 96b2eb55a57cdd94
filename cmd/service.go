package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bnema/assistant-continuity/internal/application"
	"github.com/spf13/cobra"
)

func newServiceCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Control the backend consultation service",
	}

	cmd.AddCommand(
		newServiceDirectiveCmd(app, "start", "Start the service if it is not running", "started", (*application.ServiceController).Start),
		newServiceDirectiveCmd(app, "stop", "Stop the service if it is running", "stopped", (*application.ServiceController).Stop),
		newServiceDirectiveCmd(app, "restart", "Restart the service", "restarted", (*application.ServiceController).Restart),
		newServiceDirectiveCmd(app, "cleanup", "Reclaim service memory by restarting it", "restarted", (*application.ServiceController).Restart),
		newServiceStatusCmd(app),
	)

	return cmd
}

func newServiceDirectiveCmd(app *app, use, short, done string, action func(*application.ServiceController, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := app.requireService()
			if err != nil {
				return err
			}

			if err := action(service, cmd.Context()); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", service.Name(), done)
			return err
		},
	}
}

func newServiceStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the service state as reported by systemd",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := app.requireService()
			if err != nil {
				return err
			}

			status, err := service.Status(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", status.Name, status.State.Label())
			if status.Detail != "" {
				fmt.Fprintln(out, status.Detail)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}
