package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bnema/assistant-continuity/internal/adapters/watch"
	"github.com/bnema/assistant-continuity/internal/application"
	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, finish and inspect work sessions",
	}

	cmd.AddCommand(
		newSessionStartCmd(app),
		newSessionFinishCmd(app),
		newSessionLatestCmd(app),
		newSessionShowCmd(app),
		newSessionWatchCmd(app),
		newSessionShutdownCmd(app),
	)

	return cmd
}

func newSessionStartCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Print the restored project context and start the service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := app.coordinator.StartSession(cmd.Context())
			if err != nil {
				return err
			}

			if start.ServiceErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: service not started: %v\n", start.ServiceErr)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), start.Briefing)
			return err
		},
	}
}

func newSessionFinishCmd(app *app) *cobra.Command {
	var notes application.SessionNotes

	cmd := &cobra.Command{
		Use:   "finish",
		Short: "Record the session, back up the workspace and restart the service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(notes.Accomplishments) == "" {
				return fmt.Errorf("%w: --accomplishments must not be empty", domain.ErrInvalidState)
			}

			finished, err := app.coordinator.FinishSession(cmd.Context(), notes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s recorded (total sessions: %d)\n", finished.Report.ID, finished.Recap.TotalSessions)
			if finished.Backup != "" {
				fmt.Fprintln(out, finished.Backup)
			}
			if finished.RestartErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: service restart failed: %v\n", finished.RestartErr)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&notes.Accomplishments, "accomplishments", "", "What was accomplished this session")
	cmd.Flags().StringVar(&notes.CurrentState, "state", "", "Current state of the project")
	cmd.Flags().StringVar(&notes.NextSteps, "next", "", "Next steps, one per line")
	cmd.Flags().StringVar(&notes.Notes, "notes", "", "Security constraints, discoveries and other notes")
	_ = cmd.MarkFlagRequired("accomplishments")

	return cmd
}

func newSessionLatestCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recently recorded session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, ok := app.recaps.Latest(cmd.Context())
			if !ok {
				return fmt.Errorf("latest session: %w", domain.ErrNotFound)
			}

			return writeSessionOutput(cmd.OutOrStdout(), report, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}

func newSessionShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.recaps.Session(cmd.Context(), domain.SessionID(strings.TrimSpace(args[0])))
			if err != nil {
				return err
			}

			return writeSessionOutput(cmd.OutOrStdout(), report, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}

func writeSessionOutput(w io.Writer, report domain.SessionReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	return writeSessionReport(w, report)
}

func writeSessionReport(w io.Writer, report domain.SessionReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", report.ID)
	fmt.Fprintf(&b, "  started:   %s\n", report.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "  ended:     %s\n", report.EndTime.Format(time.RFC3339))
	if report.WorkingDirectory != "" {
		fmt.Fprintf(&b, "  directory: %s\n", report.WorkingDirectory)
	}

	for _, section := range []struct {
		title string
		body  string
	}{
		{"Accomplishments", report.Accomplishments},
		{"Current State", report.CurrentState},
		{"Next Steps", report.NextSteps},
		{"Notes", report.Notes},
		{"VCS", report.VCS.Summary},
		{"Service", report.Service.Summary},
	} {
		if strings.TrimSpace(section.body) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", section.title, strings.TrimSpace(section.body))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func newSessionWatchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reprint the restored context whenever the recap changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			printBriefing := func() {
				recap := app.recaps.Load(cmd.Context())
				fmt.Fprintf(out, "%s\n\n", app.recaps.RenderStartContext(recap))
			}

			printBriefing()
			watcher := watch.NewFileWatcher(app.recapPath, 0, app.logger.Named("watch"))
			return watcher.Run(cmd.Context(), printBriefing)
		},
	}
}

func newSessionShutdownCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Record the active task so the next session can resume it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			task, err := app.coordinator.ActiveTask(cmd.Context())
			if err != nil {
				return err
			}

			if err := app.coordinator.Shutdown(cmd.Context()); err != nil {
				return err
			}

			if task.IsZero() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Shutdown complete, no active task")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Shutdown complete, task %q saved for next startup\n", task.Description)
			return err
		},
	}
}
