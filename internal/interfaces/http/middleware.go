package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/apclear/invoicegate/pkg/errors"
)

// RequestLogger logs one line per request with latency and status.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	log := logger.Named("http_access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("latency", time.Since(start)),
			logging.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= 500 {
			log.Error("request failed", fields...)
			return
		}
		log.Info("request completed", fields...)
	}
}

// Recovery converts panics into 500 responses without killing the process.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	log := logger.Named("http_recovery")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					logging.String("path", c.Request.URL.Path),
					logging.Any("panic", r))
				c.AbortWithStatusJSON(500, ErrorResponse{
					Code:    string(apperrors.ErrCodeInternal),
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// Metrics records request counts and latency per route. The route template
// is used as the path label so parameterized routes do not explode
// cardinality.
func Metrics(m *prometheus.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
