// Package prometheus exposes the decision engine's operational metrics.
// One Metrics value is created at startup, registered on its own registry,
// and shared by the application service and the HTTP layer.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the engine records.
type Metrics struct {
	registry *prometheus.Registry

	DecisionsTotal   *prometheus.CounterVec
	WorkflowDuration prometheus.Histogram
	WorkflowErrors   *prometheus.CounterVec

	MatchScore     prometheus.Histogram
	MatchTypeTotal *prometheus.CounterVec

	RiskLevelTotal *prometheus.CounterVec
	RiskFlagsTotal *prometheus.CounterVec

	ReasonerConsults *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics builds and registers all instruments on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicegate",
			Name:      "decisions_total",
			Help:      "Terminal decisions rendered, by outcome.",
		}, []string{"decision"}),
		WorkflowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "invoicegate",
			Name:      "workflow_duration_seconds",
			Help:      "End-to-end workflow run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		WorkflowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicegate",
			Name:      "workflow_errors_total",
			Help:      "Workflow runs ending in the errored state, by error code.",
		}, []string{"code"}),
		MatchScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "invoicegate",
			Name:      "match_score",
			Help:      "Overall match score distribution.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MatchTypeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicegate",
			Name:      "match_type_total",
			Help:      "Match classifications, by type.",
		}, []string{"type"}),
		RiskLevelTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicegate",
			Name:      "risk_level_total",
			Help:      "Risk assessments, by level.",
		}, []string{"level"}),
		RiskFlagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicegate",
			Name:      "risk_flags_total",
			Help:      "Risk flags raised, by type and severity.",
		}, []string{"type", "severity"}),
		ReasonerConsults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicegate",
			Name:      "reasoner_consults_total",
			Help:      "Reasoning collaborator consults, by outcome.",
		}, []string{"outcome"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicegate",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "invoicegate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	registry.MustRegister(
		m.DecisionsTotal,
		m.WorkflowDuration,
		m.WorkflowErrors,
		m.MatchScore,
		m.MatchTypeTotal,
		m.RiskLevelTotal,
		m.RiskFlagsTotal,
		m.ReasonerConsults,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the exposition endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveWorkflow records one finished workflow run.
func (m *Metrics) ObserveWorkflow(decision string, elapsed time.Duration) {
	m.DecisionsTotal.WithLabelValues(decision).Inc()
	m.WorkflowDuration.Observe(elapsed.Seconds())
}

// ObserveWorkflowError records a run ending in the errored state.
func (m *Metrics) ObserveWorkflowError(code string, elapsed time.Duration) {
	m.WorkflowErrors.WithLabelValues(code).Inc()
	m.WorkflowDuration.Observe(elapsed.Seconds())
}
