// Package decision is the application service tying the pipeline together:
// it persists the invoice, loads the vendor snapshot, runs the workflow,
// records the terminal state exactly once, and fans out the side effects
// (status updates, signatures, order settlement, events, metrics).
package decision

import (
	"context"
	"time"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/purchaseorder"
	"github.com/apclear/invoicegate/internal/domain/vendor"
	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/prometheus"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// Store is the decision audit trail.
type Store interface {
	// Save records a terminal workflow state. Must be idempotent on the
	// workflow id.
	Save(ctx context.Context, st workflow.State) error

	// FindByInvoice returns the latest terminal state for the invoice, or
	// nil when none has been recorded.
	FindByInvoice(ctx context.Context, invoiceID common.ID) (*workflow.State, error)
}

// Publisher emits terminal decision events.
type Publisher interface {
	PublishDecision(ctx context.Context, st workflow.State) error
}

// PriceRecorder folds decided invoices into the price history baseline.
type PriceRecorder interface {
	RecordInvoice(ctx context.Context, inv *invoice.Invoice) error
}

// Orchestrator runs the decision workflow.
type Orchestrator interface {
	Run(ctx context.Context, inv *invoice.Invoice, v *vendor.Vendor) (workflow.State, error)
}

// Dependencies wires the service.
type Dependencies struct {
	Invoices     invoice.Repository
	Vendors      vendor.Repository
	Orders       purchaseorder.Repository
	Signatures   invoice.SignatureStore
	Decisions    Store
	Orchestrator Orchestrator
	Publisher    Publisher
	Prices       PriceRecorder
	Metrics      *prometheus.Metrics
	Logger       logging.Logger
}

// Service processes invoices end to end.
type Service struct {
	deps   Dependencies
	logger logging.Logger
	now    func() time.Time
}

// NewService builds the service.
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:   deps,
		logger: deps.Logger.Named("decision_service"),
		now:    time.Now,
	}
}

// ProcessInvoice runs the full pipeline for one extracted invoice. An
// invoice that already has a terminal decision returns that decision
// unchanged: processing is at-most-once per invoice.
func (s *Service) ProcessInvoice(ctx context.Context, inv *invoice.Invoice) (workflow.State, error) {
	if err := inv.Validate(); err != nil {
		return workflow.State{}, err
	}

	if prior, err := s.deps.Decisions.FindByInvoice(ctx, inv.ID); err != nil {
		s.logger.Warn("prior decision lookup failed, processing anyway",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	} else if prior != nil && prior.Terminal() {
		s.logger.Info("invoice already decided, returning recorded state",
			logging.String("invoice_id", string(inv.ID)),
			logging.String("decision", string(prior.Decision)))
		return *prior, nil
	}

	if err := s.deps.Invoices.Create(ctx, inv); err != nil {
		return workflow.State{}, err
	}
	if err := s.deps.Invoices.UpdateStatus(ctx, inv.ID, invoice.StatusProcessing); err != nil {
		s.logger.Warn("failed to mark invoice processing",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	}

	v := s.loadVendor(ctx, inv.VendorID)

	start := s.now()
	st, runErr := s.deps.Orchestrator.Run(ctx, inv, v)
	elapsed := s.now().Sub(start)

	if runErr != nil {
		if !st.Terminal() {
			// Aborted between stages; the partial state is discarded.
			return st, runErr
		}
		s.recordErrored(ctx, st, runErr, elapsed)
		return st, runErr
	}

	if err := s.deps.Decisions.Save(ctx, st); err != nil {
		// Without the audit row the decision must not take effect.
		return st, err
	}
	s.applySideEffects(ctx, inv, st)
	s.deps.Metrics.ObserveWorkflow(string(st.Decision), elapsed)
	s.observeEvidence(st)
	return st, nil
}

// ProcessInvoiceByID loads a stored invoice and processes it.
func (s *Service) ProcessInvoiceByID(ctx context.Context, id common.ID) (workflow.State, error) {
	inv, err := s.deps.Invoices.FindByID(ctx, id)
	if err != nil {
		return workflow.State{}, err
	}
	return s.ProcessInvoice(ctx, inv)
}

// GetDecision returns the recorded terminal state for an invoice.
func (s *Service) GetDecision(ctx context.Context, invoiceID common.ID) (*workflow.State, error) {
	st, err := s.deps.Decisions.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no decision recorded for invoice %s", invoiceID)
	}
	return st, nil
}

func (s *Service) loadVendor(ctx context.Context, id common.ID) *vendor.Vendor {
	v, err := s.deps.Vendors.FindByID(ctx, id)
	if err != nil {
		s.logger.Warn("vendor snapshot unavailable, continuing without vendor history",
			logging.String("vendor_id", string(id)), logging.Err(err))
		return nil
	}
	return v
}

func (s *Service) recordErrored(ctx context.Context, st workflow.State, runErr error, elapsed time.Duration) {
	if err := s.deps.Decisions.Save(ctx, st); err != nil {
		s.logger.Error("failed to record errored workflow",
			logging.String("invoice_id", string(st.InvoiceID)), logging.Err(err))
	}
	if err := s.deps.Invoices.UpdateStatus(ctx, st.InvoiceID, invoice.StatusErrored); err != nil {
		s.logger.Warn("failed to mark invoice errored",
			logging.String("invoice_id", string(st.InvoiceID)), logging.Err(err))
	}
	if err := s.deps.Publisher.PublishDecision(ctx, st); err != nil {
		s.logger.Warn("failed to publish errored workflow event",
			logging.String("invoice_id", string(st.InvoiceID)), logging.Err(err))
	}
	s.deps.Metrics.ObserveWorkflowError(string(errors.GetCode(runErr)), elapsed)
}

// applySideEffects runs everything that follows a recorded decision. Each
// effect is independent and best-effort: the decision stands even when one
// of them fails, and each failure is logged for reconciliation.
func (s *Service) applySideEffects(ctx context.Context, inv *invoice.Invoice, st workflow.State) {
	if err := s.deps.Invoices.UpdateStatus(ctx, inv.ID, invoice.StatusDecided); err != nil {
		s.logger.Warn("failed to mark invoice decided",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	}

	if err := s.deps.Signatures.Record(ctx, inv.ComputeSignature()); err != nil {
		s.logger.Warn("failed to record invoice signature",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	}

	if err := s.deps.Prices.RecordInvoice(ctx, inv); err != nil {
		s.logger.Warn("failed to record price observations",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	}

	if st.Decision == workflow.DecisionAutoApproved && st.MatchResult.Matched() {
		s.settleOrder(ctx, inv, *st.MatchResult.PurchaseOrderID)
	}

	if err := s.deps.Publisher.PublishDecision(ctx, st); err != nil {
		s.logger.Warn("failed to publish decision event",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	}
}

// settleOrder books the approved invoice total against the matched order.
func (s *Service) settleOrder(ctx context.Context, inv *invoice.Invoice, orderID common.ID) {
	po, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		s.logger.Warn("failed to load matched order for settlement",
			logging.String("purchase_order_id", string(orderID)), logging.Err(err))
		return
	}
	if err := po.ApplyMatch(inv.Total); err != nil {
		s.logger.Warn("matched order rejected settlement",
			logging.String("purchase_order_id", string(orderID)), logging.Err(err))
		return
	}
	if err := s.deps.Orders.Save(ctx, po); err != nil {
		s.logger.Warn("failed to save settled order",
			logging.String("purchase_order_id", string(orderID)), logging.Err(err))
	}
}

func (s *Service) observeEvidence(st workflow.State) {
	if st.MatchResult != nil {
		s.deps.Metrics.MatchScore.Observe(st.MatchResult.Score)
		s.deps.Metrics.MatchTypeTotal.WithLabelValues(string(st.MatchResult.Type)).Inc()
		if st.MatchResult.ReasonerNote != "" {
			outcome := "review"
			if !st.MatchResult.RequiresApproval {
				outcome = "approve"
			}
			s.deps.Metrics.ReasonerConsults.WithLabelValues(outcome).Inc()
		}
	}
	if st.RiskAssessment != nil {
		s.deps.Metrics.RiskLevelTotal.WithLabelValues(string(st.RiskAssessment.Level)).Inc()
		for _, f := range st.RiskAssessment.Flags {
			s.deps.Metrics.RiskFlagsTotal.WithLabelValues(string(f.Type), string(f.Severity)).Inc()
		}
	}
}
