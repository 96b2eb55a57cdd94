package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newTaskCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Track the task currently being worked on",
	}

	cmd.AddCommand(
		newTaskSetCmd(app),
		newTaskCompleteCmd(app),
		newTaskShowCmd(app),
	)

	return cmd
}

func newTaskSetCmd(app *app) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "set <description>",
		Short: "Set the active task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := app.coordinator.SetTask(cmd.Context(), strings.Join(args, " "), replace)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Task set: %s\n", task.Description)
			return err
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the active task instead of failing")

	return cmd
}

func newTaskCompleteCmd(app *app) *cobra.Command {
	var accomplishments string
	var nextSteps string

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record the active task as completed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			task, err := app.coordinator.ActiveTask(cmd.Context())
			if err != nil {
				return err
			}

			completed, err := app.coordinator.CompleteTask(cmd.Context(), accomplishments, nextSteps)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task completed: %s (session %s)\n", task.Description, completed.Report.ID)
			if completed.Backup != "" {
				fmt.Fprintln(out, completed.Backup)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&accomplishments, "accomplishments", "", "What the task accomplished")
	cmd.Flags().StringVar(&nextSteps, "next", "", "Next steps, one per line")
	_ = cmd.MarkFlagRequired("accomplishments")

	return cmd
}

func newTaskShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			task, err := app.coordinator.ActiveTask(cmd.Context())
			if err != nil {
				return err
			}

			if task.IsZero() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No active task")
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (since %s)\n", task.Description, task.StartedAt.Format(time.RFC3339))
			return err
		},
	}
}
