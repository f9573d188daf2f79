package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/prometheus"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

type stubService struct {
	state       workflow.State
	err         error
	decision    *workflow.State
	decisionErr error
	lastInvoice *invoice.Invoice
}

func (s *stubService) ProcessInvoice(_ context.Context, inv *invoice.Invoice) (workflow.State, error) {
	s.lastInvoice = inv
	return s.state, s.err
}

func (s *stubService) ProcessInvoiceByID(context.Context, common.ID) (workflow.State, error) {
	return s.state, s.err
}

func (s *stubService) GetDecision(context.Context, common.ID) (*workflow.State, error) {
	return s.decision, s.decisionErr
}

type stubCheck struct{ err error }

func (s stubCheck) HealthCheck(context.Context) error { return s.err }

func newTestRouter(t *testing.T, svc *stubService, checks map[string]HealthChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.NewDefaultConfig()
	cfg.Metrics.Enabled = true
	h := NewHandler(svc, checks, logging.NewNop())
	return NewRouter(h, prometheus.NewMetrics(), *cfg, logging.NewNop())
}

func ingestBody(t *testing.T, mutate func(*IngestInvoiceRequest)) *bytes.Buffer {
	t.Helper()
	req := IngestInvoiceRequest{
		VendorID:             "vendor-1",
		VendorName:           "Acme Corp",
		InvoiceNumber:        "INV-1001",
		IssueDate:            time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Currency:             "USD",
		Total:                decimal.NewFromInt(1000),
		ExtractionConfidence: 0.95,
	}
	if mutate != nil {
		mutate(&req)
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewBuffer(raw)
}

func TestIngestInvoice_ReturnsDecision(t *testing.T) {
	completed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := &stubService{state: workflow.State{
		ID:          common.NewID(),
		InvoiceID:   "inv-1",
		Stage:       workflow.StageDecided,
		Decision:    workflow.DecisionAutoApproved,
		Rationale:   "clean_match: match score 0.97 with low risk score 0.05",
		CompletedAt: &completed,
	}}
	router := newTestRouter(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", ingestBody(t, nil))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, workflow.DecisionAutoApproved, resp.Decision)
	require.NotNil(t, svc.lastInvoice)
	assert.NotEmpty(t, svc.lastInvoice.ID, "omitted id must be generated")
	assert.Equal(t, invoice.StatusExtracted, svc.lastInvoice.Status)
}

func TestIngestInvoice_RejectsMissingFields(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices",
		ingestBody(t, func(r *IngestInvoiceRequest) { r.InvoiceNumber = "" }))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.lastInvoice)
}

func TestIngestInvoice_RejectsBadCurrency(t *testing.T) {
	router := newTestRouter(t, &stubService{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices",
		ingestBody(t, func(r *IngestInvoiceRequest) { r.Currency = "usd" }))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestInvoice_ErroredWorkflowIs422(t *testing.T) {
	svc := &stubService{
		state: workflow.State{
			InvoiceID:     "inv-1",
			Stage:         workflow.StageErrored,
			FailureReason: "extraction confidence 0.40 is below the minimum 0.70",
		},
		err: errors.New(errors.ErrCodeIncompleteExtraction, "extraction confidence too low"),
	}
	router := newTestRouter(t, svc, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", ingestBody(t, nil))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, workflow.StageErrored, resp.Stage)
	assert.NotEmpty(t, resp.FailureReason)
}

func TestGetDecision(t *testing.T) {
	st := workflow.State{
		InvoiceID: "inv-1",
		Stage:     workflow.StageDecided,
		Decision:  workflow.DecisionRequiresReview,
	}
	svc := &stubService{decision: &st}
	router := newTestRouter(t, svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/decisions/inv-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, workflow.DecisionRequiresReview, resp.Decision)
}

func TestGetDecision_NotFound(t *testing.T) {
	svc := &stubService{decisionErr: errors.NotFound("no decision recorded for invoice inv-9")}
	router := newTestRouter(t, svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/decisions/inv-9", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(errors.ErrCodeNotFound), resp.Code)
}

func TestGetDecision_MasksInternalErrors(t *testing.T) {
	svc := &stubService{decisionErr: errors.New(errors.ErrCodeDatabaseError, "pq: connection refused on 10.0.0.5")}
	router := newTestRouter(t, svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/decisions/inv-1", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &stubService{}, map[string]HealthChecker{
		"postgres": stubCheck{},
		"redis":    stubCheck{},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_DegradedDependency(t *testing.T) {
	router := newTestRouter(t, &stubService{}, map[string]HealthChecker{
		"postgres": stubCheck{},
		"redis":    stubCheck{err: errors.New(errors.ErrCodeCacheError, "dial refused")},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestRouter_ServesMetrics(t *testing.T) {
	router := newTestRouter(t, &stubService{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
