package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var opts globalOptions
	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "ac",
		Short:         "Assistant continuity (ac): session memory and service lifecycle",
		Long:          "ac keeps a long-running assistant's project memory across restarts of its backend service, drives that service through systemd, and supervises the child processes it launches.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return app.wire(opts)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			app.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.assistant/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSessionCmd(app),
		newTaskCmd(app),
		newServiceCmd(app),
		newConsultCmd(app),
		newRunCmd(app),
		newOrchestrateCmd(app),
		newStatusCmd(app),
	)

	return rootCmd
}
