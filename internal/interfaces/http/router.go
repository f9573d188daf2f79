package http

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/prometheus"
)

var registerValidationsOnce sync.Once

// registerValidations adds custom binding rules to gin's validator engine.
func registerValidations() {
	registerValidationsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// ISO 4217 style: exactly three uppercase letters.
		_ = v.RegisterValidation("currency_code", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if len(s) != 3 {
				return false
			}
			for _, r := range s {
				if r < 'A' || r > 'Z' {
					return false
				}
			}
			return true
		})
	})
}

// NewRouter wires the middleware chain and all routes.
func NewRouter(h *Handler, m *prometheus.Metrics, cfg config.Config, logger logging.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	registerValidations()

	router := gin.New()
	router.Use(Recovery(logger), RequestLogger(logger), Metrics(m))

	router.GET("/healthz", h.Health)
	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(m.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/invoices", h.IngestInvoice)
		v1.POST("/invoices/:id/process", h.ProcessInvoice)
		v1.GET("/decisions/:invoice_id", h.GetDecision)
	}
	return router
}
