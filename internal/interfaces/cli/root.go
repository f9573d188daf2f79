// Package cli defines the invoicegate command tree: serve runs the API
// server with the event consumer, worker runs the consumer alone, migrate
// applies the schema, and assess decides a single invoice from a file.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "invoicegate",
		Short:         "invoicegate decides whether vendor invoices get paid",
		Long:          "invoicegate ingests extracted vendor invoices, reconciles them against\nopen purchase orders, scores fraud risk, and renders an automated payment\ndecision with a full evidence trail.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: environment only)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCommand(opts),
		newWorkerCommand(opts),
		newMigrateCommand(opts),
		newAssessCommand(opts),
	)
	return cmd
}

// loadConfig resolves configuration from the file flag or the environment.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	return logging.NewLogger(cfg.Log)
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
