package prometheus

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveWorkflow(t *testing.T) {
	m := NewMetrics()

	m.ObserveWorkflow("auto_approved", 120*time.Millisecond)
	m.ObserveWorkflow("auto_approved", 80*time.Millisecond)
	m.ObserveWorkflow("rejected", 200*time.Millisecond)
	m.ObserveWorkflowError("ENGINE_001", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("auto_approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowErrors.WithLabelValues("ENGINE_001")))
}

func TestMetrics_HandlerServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.MatchTypeTotal.WithLabelValues("exact").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "invoicegate_match_type_total")
}
