package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/infrastructure/messaging/kafka"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	httpiface "github.com/apclear/invoicegate/internal/interfaces/http"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	var withConsumer bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long:  "Runs the REST API plus, unless disabled, the Kafka consumer that\nprocesses invoices published by the extraction service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, withConsumer)
		},
	}
	cmd.Flags().BoolVar(&withConsumer, "with-consumer", true, "also consume invoice events from Kafka")
	return cmd
}

// RunServe is the entry point used by cmd/apiserver.
func RunServe(configPath string, withConsumer bool) error {
	return runServe(&RootOptions{ConfigPath: configPath}, withConsumer)
}

func runServe(opts *RootOptions, withConsumer bool) error {
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

	if opts.ConfigPath != "" {
		config.Watch(opts.ConfigPath, func(_ *config.Config) {
			// Engine thresholds are captured at construction; a changed file
			// takes effect on the next restart.
			logger.Info("configuration file changed, restart to apply",
				logging.String("path", opts.ConfigPath))
		})
	}

	handler := httpiface.NewHandler(app.Service, app.HealthChecks(), logger)
	router := httpiface.NewRouter(handler, app.Metrics, *cfg, logger)
	server := httpiface.NewServer(cfg.Server, router, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start()
	}()

	var consumer *kafka.Consumer
	if withConsumer {
		consumer = kafka.NewConsumer(cfg.Kafka, invoiceHandler(app), logger)
		go func() {
			errCh <- consumer.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("component failed, shutting down", logging.Err(err))
		}
	}
	stop()

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("consumer close failed", logging.Err(err))
		}
	}
	if err := server.Stop(context.Background()); err != nil {
		logger.Error("http server shutdown failed", logging.Err(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func invoiceHandler(app *Application) kafka.InvoiceHandler {
	return func(ctx context.Context, inv *invoice.Invoice) error {
		_, err := app.Service.ProcessInvoice(ctx, inv)
		return err
	}
}
