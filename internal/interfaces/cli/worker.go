package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apclear/invoicegate/internal/infrastructure/messaging/kafka"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
)

func newWorkerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the invoice event consumer without the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(opts)
		},
	}
}

// RunWorker is the entry point used by cmd/worker.
func RunWorker(configPath string) error {
	return runWorker(&RootOptions{ConfigPath: configPath})
}

func runWorker(opts *RootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	app, err := buildApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka, invoiceHandler(app), logger)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("consumer close failed", logging.Err(err))
		}
	}()

	logger.Info("worker consuming invoice events",
		logging.String("group_id", cfg.Kafka.GroupID))
	return consumer.Run(ctx)
}
