package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bnema/assistant-continuity/internal/application"
	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type orchestrationPlan struct {
	Tasks []application.TaskSpec `yaml:"tasks"`
}

func loadOrchestrationPlan(path string) (orchestrationPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return orchestrationPlan{}, fmt.Errorf("read plan: %w", err)
	}

	var plan orchestrationPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return orchestrationPlan{}, fmt.Errorf("decode plan %s: %w", path, err)
	}

	if len(plan.Tasks) == 0 {
		return orchestrationPlan{}, fmt.Errorf("%w: plan %s has no tasks", domain.ErrInvalidState, path)
	}

	seen := make(map[string]struct{}, len(plan.Tasks))
	for i, task := range plan.Tasks {
		if strings.TrimSpace(task.Name) == "" || strings.TrimSpace(task.Command) == "" {
			return orchestrationPlan{}, fmt.Errorf("%w: plan task %d needs a name and a command", domain.ErrInvalidState, i+1)
		}
		if _, ok := seen[task.Name]; ok {
			return orchestrationPlan{}, fmt.Errorf("%w: plan task %q is listed twice", domain.ErrInvalidState, task.Name)
		}
		seen[task.Name] = struct{}{}
	}

	return plan, nil
}

func newOrchestrateCmd(app *app) *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Run the tasks of a YAML plan concurrently",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := loadOrchestrationPlan(planPath)
			if err != nil {
				return err
			}

			defer terminateChildren(app)

			outcomes := app.coordinator.RunTasks(cmd.Context(), plan.Tasks)
			return writeOutcomes(cmd.OutOrStdout(), outcomes)
		},
	}

	cmd.Flags().StringVarP(&planPath, "file", "f", "", "Plan file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func writeOutcomes(w io.Writer, outcomes []application.TaskOutcome) error {
	failed := 0
	for _, outcome := range outcomes {
		icon := color.New(color.FgGreen).Sprint("ok  ")
		detail := fmt.Sprintf("exit %d, %s", outcome.Result.ExitCode, outcome.Result.Duration.Round(time.Millisecond))
		if outcome.Err != nil {
			failed++
			icon = color.New(color.FgRed).Sprint("FAIL")
			detail = outcome.Err.Error()
		}
		fmt.Fprintf(w, "%s %s (%s)\n", icon, outcome.Name, detail)
	}

	fmt.Fprintf(w, "%d/%d tasks succeeded\n", len(outcomes)-failed, len(outcomes))
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d tasks failed", domain.ErrProcessFailure, failed, len(outcomes))
	}

	return nil
}
