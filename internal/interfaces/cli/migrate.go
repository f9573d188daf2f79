package cli

import (
	"github.com/spf13/cobra"

	"github.com/apclear/invoicegate/internal/infrastructure/database/postgres"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
)

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default: from config)")
	return cmd
}

func runMigrate(opts *RootOptions, dir string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	pg, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := pg.Close(); err != nil {
			logger.Warn("postgres close failed", logging.Err(err))
		}
	}()

	if dir == "" {
		dir = cfg.Database.MigrationPath
	}
	if err := pg.RunMigrations(dir); err != nil {
		return err
	}
	logger.Info("migrations applied", logging.String("dir", dir))
	return nil
}
