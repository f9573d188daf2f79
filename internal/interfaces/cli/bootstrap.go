package cli

import (
	"github.com/apclear/invoicegate/internal/application/decision"
	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/engine/matching"
	"github.com/apclear/invoicegate/internal/engine/reasoning"
	"github.com/apclear/invoicegate/internal/engine/riskengine"
	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/internal/infrastructure/database/postgres"
	"github.com/apclear/invoicegate/internal/infrastructure/database/postgres/repositories"
	"github.com/apclear/invoicegate/internal/infrastructure/database/redis"
	"github.com/apclear/invoicegate/internal/infrastructure/messaging/kafka"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/prometheus"
	httpiface "github.com/apclear/invoicegate/internal/interfaces/http"
)

// Application is the fully wired decision stack shared by the serve, worker
// and assess commands.
type Application struct {
	Config   *config.Config
	Logger   logging.Logger
	Metrics  *prometheus.Metrics
	Postgres *postgres.Connection
	Redis    *redis.Client
	Producer *kafka.Producer
	Service  *decision.Service
}

// buildApplication connects every backing service and assembles the engine.
// Callers own the returned Application and must Close it.
func buildApplication(cfg *config.Config, logger logging.Logger) (*Application, error) {
	pg, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rd, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	db := pg.DB()
	invoices := repositories.NewInvoiceRepo(db, logger)
	orders := repositories.NewPurchaseOrderRepo(db, logger)
	vendors := repositories.NewVendorRepo(db, logger)
	decisions := repositories.NewDecisionRepo(db, logger)
	prices := repositories.NewPriceHistoryRepo(db, logger)
	signatures := redis.NewSignatureStore(rd, cfg.Redis, logger)

	var reasoner reasoning.Reasoner = reasoning.Noop{}
	if cfg.Reasoning.Enabled {
		r, err := reasoning.NewOpenAIReasoner(cfg.Reasoning, logger)
		if err != nil {
			_ = rd.Close()
			_ = pg.Close()
			return nil, err
		}
		reasoner = r
	}

	matcher := matching.NewEngine(orders, reasoner, cfg.Engine, logger)
	assessor := riskengine.NewEngine(signatures, prices, cfg.Engine, logger)
	orchestrator := workflow.NewOrchestrator(matcher, assessor, cfg.Engine, logger)

	producer := kafka.NewProducer(cfg.Kafka, logger)
	metrics := prometheus.NewMetrics()

	service := decision.NewService(decision.Dependencies{
		Invoices:     invoices,
		Vendors:      vendors,
		Orders:       orders,
		Signatures:   signatures,
		Decisions:    decisions,
		Orchestrator: orchestrator,
		Publisher:    producer,
		Prices:       prices,
		Metrics:      metrics,
		Logger:       logger,
	})

	return &Application{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Postgres: pg,
		Redis:    rd,
		Producer: producer,
		Service:  service,
	}, nil
}

// HealthChecks exposes the backing-dependency probes for the HTTP layer.
func (a *Application) HealthChecks() map[string]httpiface.HealthChecker {
	return map[string]httpiface.HealthChecker{
		"postgres": a.Postgres,
		"redis":    a.Redis,
	}
}

// Close releases every held connection. Safe to call once.
func (a *Application) Close() {
	if err := a.Producer.Close(); err != nil {
		a.Logger.Warn("kafka producer close failed", logging.Err(err))
	}
	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn("redis close failed", logging.Err(err))
	}
	if err := a.Postgres.Close(); err != nil {
		a.Logger.Warn("postgres close failed", logging.Err(err))
	}
}
