package cmd

import (
	"encoding/json"
	"fmt"

	statusadapter "github.com/bnema/assistant-continuity/internal/adapters/render/status"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active task, service state and session history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.coordinator.Status(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			rendered, err := app.statusRenderer(status, statusadapter.RenderOptions{
				Now:        app.now(),
				StaleAfter: app.staleAfter,
			})
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}
