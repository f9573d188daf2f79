// Package http exposes the decision pipeline over a REST API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	apperrors "github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// InvoiceService is the application surface the handlers call.
type InvoiceService interface {
	ProcessInvoice(ctx context.Context, inv *invoice.Invoice) (workflow.State, error)
	ProcessInvoiceByID(ctx context.Context, id common.ID) (workflow.State, error)
	GetDecision(ctx context.Context, invoiceID common.ID) (*workflow.State, error)
}

// HealthChecker probes one backing dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds the route implementations.
type Handler struct {
	service InvoiceService
	checks  map[string]HealthChecker
	logger  logging.Logger
	now     func() time.Time
}

// NewHandler builds the handler set. checks maps a dependency name to its
// probe and may be nil.
func NewHandler(service InvoiceService, checks map[string]HealthChecker, logger logging.Logger) *Handler {
	return &Handler{
		service: service,
		checks:  checks,
		logger:  logger.Named("http"),
		now:     time.Now,
	}
}

// IngestInvoice accepts an extracted invoice, runs the full decision
// pipeline synchronously and returns the rendered decision.
func (h *Handler) IngestInvoice(c *gin.Context) {
	var req IngestInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, apperrors.ErrCodeValidation, err.Error())
		return
	}

	st, err := h.service.ProcessInvoice(c.Request.Context(), req.ToDomain(h.now()))
	if err != nil {
		if st.Stage == workflow.StageErrored {
			// The run terminated in a recorded errored state; the client gets
			// the state along with the reason, not a bare 5xx.
			c.JSON(http.StatusUnprocessableEntity, newDecisionResponse(st))
			return
		}
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDecisionResponse(st))
}

// ProcessInvoice reruns the pipeline for a stored invoice.
func (h *Handler) ProcessInvoice(c *gin.Context) {
	id := common.ID(c.Param("id"))
	st, err := h.service.ProcessInvoiceByID(c.Request.Context(), id)
	if err != nil {
		if st.Stage == workflow.StageErrored {
			c.JSON(http.StatusUnprocessableEntity, newDecisionResponse(st))
			return
		}
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDecisionResponse(st))
}

// GetDecision returns the recorded decision for an invoice.
func (h *Handler) GetDecision(c *gin.Context) {
	id := common.ID(c.Param("invoice_id"))
	st, err := h.service.GetDecision(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDecisionResponse(*st))
}

// Health probes every registered dependency. Any failing probe turns the
// response into a 503 with per-dependency detail.
func (h *Handler) Health(c *gin.Context) {
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.HealthCheck(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}
	body := gin.H{"status": "ok", "dependencies": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

func writeError(c *gin.Context, status int, code apperrors.ErrorCode, message string) {
	c.JSON(status, ErrorResponse{Code: string(code), Message: message})
}

// writeAppError maps error codes onto HTTP statuses. Internal failure
// details are masked.
func writeAppError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	switch {
	case apperrors.IsValidation(err):
		writeError(c, http.StatusBadRequest, code, err.Error())
	case apperrors.IsNotFound(err):
		writeError(c, http.StatusNotFound, code, err.Error())
	case apperrors.IsCode(err, apperrors.ErrCodeConflict),
		apperrors.IsCode(err, apperrors.ErrCodeWorkflowTerminal):
		writeError(c, http.StatusConflict, code, err.Error())
	case apperrors.IsCode(err, apperrors.ErrCodeTimeout),
		apperrors.IsCode(err, apperrors.ErrCodeCollaboratorTimeout):
		writeError(c, http.StatusGatewayTimeout, code, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, apperrors.ErrCodeInternal, "internal server error")
	}
}
