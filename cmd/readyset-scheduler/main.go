// Command readyset-scheduler reconciles a ProxySQL-family router's health
// and routing state against one or more ReadySet accelerator instances.
// It is meant to be invoked on a schedule, not run as a daemon.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/readysettech/proxysql-scheduler/internal/logging"
	"github.com/readysettech/proxysql-scheduler/internal/runner"
)

var (
	configPath string
	dryRun     bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readyset-scheduler",
		Short: "Reconciles ProxySQL routing state against ReadySet accelerators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Run(context.Background(), runner.Options{
				ConfigPath: configPath,
				DryRun:     dryRun,
			})
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML config file")
	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "perform reads and ranking but issue no writes")
	cmd.MarkPersistentFlagRequired("config")

	cmd.SilenceErrors = true
	cmd.CompletionOptions.DisableDefaultCmd = true

	originalRunE := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := originalRunE(cmd, args); err != nil {
			logging.Default.Error("%v", err)
			return err
		}
		return nil
	}

	return cmd
}
