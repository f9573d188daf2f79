package decision

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/purchaseorder"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/domain/vendor"
	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/prometheus"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

type stubInvoices struct {
	created  []*invoice.Invoice
	statuses []invoice.Status
	stored   *invoice.Invoice
}

func (s *stubInvoices) Create(_ context.Context, inv *invoice.Invoice) error {
	s.created = append(s.created, inv)
	return nil
}

func (s *stubInvoices) FindByID(_ context.Context, id common.ID) (*invoice.Invoice, error) {
	if s.stored == nil || s.stored.ID != id {
		return nil, errors.Newf(errors.ErrCodeInvoiceNotFound, "invoice %s not found", id)
	}
	return s.stored, nil
}

func (s *stubInvoices) UpdateStatus(_ context.Context, _ common.ID, status invoice.Status) error {
	s.statuses = append(s.statuses, status)
	return nil
}

type stubVendors struct {
	vendor *vendor.Vendor
	err    error
}

func (s *stubVendors) FindByID(context.Context, common.ID) (*vendor.Vendor, error) {
	return s.vendor, s.err
}

type stubOrders struct {
	order *purchaseorder.PurchaseOrder
	saved []*purchaseorder.PurchaseOrder
}

func (s *stubOrders) FindByID(_ context.Context, id common.ID) (*purchaseorder.PurchaseOrder, error) {
	if s.order == nil || s.order.ID != id {
		return nil, errors.NotFound("purchase order not found")
	}
	return s.order, nil
}

func (s *stubOrders) FindMatchableByVendor(context.Context, common.ID) ([]*purchaseorder.PurchaseOrder, error) {
	return nil, nil
}

func (s *stubOrders) Save(_ context.Context, po *purchaseorder.PurchaseOrder) error {
	s.saved = append(s.saved, po)
	return nil
}

type stubSignatures struct {
	recorded []invoice.Signature
}

func (s *stubSignatures) Seen(context.Context, string) (bool, error) { return false, nil }

func (s *stubSignatures) RecentByVendor(context.Context, common.ID, time.Time, time.Time) ([]invoice.Signature, error) {
	return nil, nil
}

func (s *stubSignatures) Record(_ context.Context, sig invoice.Signature) error {
	s.recorded = append(s.recorded, sig)
	return nil
}

type stubDecisions struct {
	prior   *workflow.State
	findErr error
	saveErr error
	saved   []workflow.State
}

func (s *stubDecisions) Save(_ context.Context, st workflow.State) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, st)
	return nil
}

func (s *stubDecisions) FindByInvoice(context.Context, common.ID) (*workflow.State, error) {
	return s.prior, s.findErr
}

type stubOrchestrator struct {
	state  workflow.State
	err    error
	calls  int
	vendor *vendor.Vendor
}

func (s *stubOrchestrator) Run(_ context.Context, _ *invoice.Invoice, v *vendor.Vendor) (workflow.State, error) {
	s.calls++
	s.vendor = v
	return s.state, s.err
}

type stubPublisher struct {
	published []workflow.State
	err       error
}

func (s *stubPublisher) PublishDecision(_ context.Context, st workflow.State) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, st)
	return nil
}

type stubPrices struct {
	recorded int
}

func (s *stubPrices) RecordInvoice(context.Context, *invoice.Invoice) error {
	s.recorded++
	return nil
}

type fixture struct {
	invoices     *stubInvoices
	vendors      *stubVendors
	orders       *stubOrders
	signatures   *stubSignatures
	decisions    *stubDecisions
	orchestrator *stubOrchestrator
	publisher    *stubPublisher
	prices       *stubPrices
	service      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		invoices:     &stubInvoices{},
		vendors:      &stubVendors{vendor: &vendor.Vendor{ID: "vendor-1", Name: "Acme Corp"}},
		orders:       &stubOrders{},
		signatures:   &stubSignatures{},
		decisions:    &stubDecisions{},
		orchestrator: &stubOrchestrator{},
		publisher:    &stubPublisher{},
		prices:       &stubPrices{},
	}
	f.service = NewService(Dependencies{
		Invoices:     f.invoices,
		Vendors:      f.vendors,
		Orders:       f.orders,
		Signatures:   f.signatures,
		Decisions:    f.decisions,
		Orchestrator: f.orchestrator,
		Publisher:    f.publisher,
		Prices:       f.prices,
		Metrics:      prometheus.NewMetrics(),
		Logger:       logging.NewNop(),
	})
	return f
}

func serviceInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		ID:                   "inv-1",
		VendorID:             "vendor-1",
		InvoiceNumber:        "INV-1001",
		IssueDate:            time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Total:                decimal.NewFromInt(1000),
		ExtractionConfidence: 0.95,
		Status:               invoice.StatusExtracted,
	}
}

func decidedState(inv *invoice.Invoice, d workflow.Decision, poID *common.ID) workflow.State {
	completed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	st := workflow.State{
		ID:          common.NewID(),
		InvoiceID:   inv.ID,
		Stage:       workflow.StageDecided,
		Invoice:     inv,
		Decision:    d,
		Rationale:   "clean_match: match score 0.97 with low risk score 0.05",
		CompletedAt: &completed,
	}
	if poID != nil {
		st.MatchResult = &match.Result{
			InvoiceID:       inv.ID,
			PurchaseOrderID: poID,
			Type:            match.TypeExact,
			Score:           0.97,
		}
	}
	st.RiskAssessment = &risk.Assessment{InvoiceID: inv.ID, Level: risk.LevelLow, Score: 0.05}
	return st
}

func TestProcessInvoice_AutoApproveSettlesOrder(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	poID := common.ID("po-1")
	f.orders.order = &purchaseorder.PurchaseOrder{
		ID:          poID,
		VendorID:    inv.VendorID,
		Status:      purchaseorder.StatusOpen,
		TotalAmount: decimal.NewFromInt(1000),
	}
	f.orchestrator.state = decidedState(inv, workflow.DecisionAutoApproved, &poID)

	st, err := f.service.ProcessInvoice(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, workflow.DecisionAutoApproved, st.Decision)

	require.Len(t, f.invoices.created, 1)
	assert.Equal(t, []invoice.Status{invoice.StatusProcessing, invoice.StatusDecided}, f.invoices.statuses)
	require.Len(t, f.decisions.saved, 1)
	require.Len(t, f.signatures.recorded, 1)
	assert.Equal(t, inv.ComputeSignature().Hash, f.signatures.recorded[0].Hash)
	assert.Equal(t, 1, f.prices.recorded)
	require.Len(t, f.publisher.published, 1)

	require.Len(t, f.orders.saved, 1)
	assert.True(t, f.orders.saved[0].MatchedAmount.Equal(inv.Total))
	assert.Equal(t, purchaseorder.StatusClosed, f.orders.saved[0].Status)
}

func TestProcessInvoice_AlreadyDecidedReturnsRecordedState(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	prior := decidedState(inv, workflow.DecisionRequiresReview, nil)
	f.decisions.prior = &prior

	st, err := f.service.ProcessInvoice(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, prior.ID, st.ID)
	assert.Equal(t, workflow.DecisionRequiresReview, st.Decision)

	assert.Empty(t, f.invoices.created)
	assert.Zero(t, f.orchestrator.calls)
	assert.Empty(t, f.decisions.saved)
	assert.Empty(t, f.publisher.published)
}

func TestProcessInvoice_ReviewDecisionSkipsSettlement(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	poID := common.ID("po-1")
	f.orchestrator.state = decidedState(inv, workflow.DecisionRequiresReview, &poID)

	_, err := f.service.ProcessInvoice(context.Background(), inv)
	require.NoError(t, err)
	assert.Empty(t, f.orders.saved)
	assert.Len(t, f.signatures.recorded, 1)
}

func TestProcessInvoice_AuditFailureBlocksSideEffects(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	f.orchestrator.state = decidedState(inv, workflow.DecisionAutoApproved, nil)
	f.decisions.saveErr = errors.New(errors.ErrCodeDatabaseError, "connection lost")

	_, err := f.service.ProcessInvoice(context.Background(), inv)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))

	assert.Empty(t, f.signatures.recorded)
	assert.Empty(t, f.publisher.published)
	assert.Zero(t, f.prices.recorded)
	assert.Equal(t, []invoice.Status{invoice.StatusProcessing}, f.invoices.statuses)
}

func TestProcessInvoice_ErroredWorkflowIsRecorded(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	inv.ExtractionConfidence = 0.4
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	errored := workflow.State{
		ID:            common.NewID(),
		InvoiceID:     inv.ID,
		Stage:         workflow.StageErrored,
		FailureReason: "extraction confidence 0.40 is below the minimum 0.70",
		CompletedAt:   &now,
	}
	f.orchestrator.state = errored
	f.orchestrator.err = errors.New(errors.ErrCodeIncompleteExtraction, "extraction confidence too low")

	st, err := f.service.ProcessInvoice(context.Background(), inv)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeIncompleteExtraction))
	assert.Equal(t, workflow.StageErrored, st.Stage)

	require.Len(t, f.decisions.saved, 1)
	assert.Equal(t, []invoice.Status{invoice.StatusProcessing, invoice.StatusErrored}, f.invoices.statuses)
	require.Len(t, f.publisher.published, 1)
	assert.Empty(t, f.signatures.recorded)
}

func TestProcessInvoice_AbortedRunPersistsNothing(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	f.orchestrator.state = workflow.State{InvoiceID: inv.ID, Stage: workflow.StageMatched}
	f.orchestrator.err = errors.New(errors.ErrCodeTimeout, "workflow aborted")

	_, err := f.service.ProcessInvoice(context.Background(), inv)
	require.Error(t, err)
	assert.Empty(t, f.decisions.saved)
	assert.Empty(t, f.publisher.published)
}

func TestProcessInvoice_MissingVendorStillProcesses(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	f.vendors.vendor = nil
	f.vendors.err = errors.Newf(errors.ErrCodeVendorNotFound, "vendor %s not found", inv.VendorID)
	f.orchestrator.state = decidedState(inv, workflow.DecisionRequiresReview, nil)

	_, err := f.service.ProcessInvoice(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 1, f.orchestrator.calls)
	assert.Nil(t, f.orchestrator.vendor)
}

func TestProcessInvoice_RejectsInvalidInvoice(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	inv.InvoiceNumber = "  "

	_, err := f.service.ProcessInvoice(context.Background(), inv)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.Zero(t, f.orchestrator.calls)
}

func TestProcessInvoiceByID(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	f.invoices.stored = inv
	f.orchestrator.state = decidedState(inv, workflow.DecisionRequiresReview, nil)

	st, err := f.service.ProcessInvoiceByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.DecisionRequiresReview, st.Decision)

	_, err = f.service.ProcessInvoiceByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvoiceNotFound))
}

func TestGetDecision(t *testing.T) {
	f := newFixture(t)
	inv := serviceInvoice()
	prior := decidedState(inv, workflow.DecisionAutoApproved, nil)
	f.decisions.prior = &prior

	st, err := f.service.GetDecision(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.DecisionAutoApproved, st.Decision)

	f.decisions.prior = nil
	_, err = f.service.GetDecision(context.Background(), inv.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
