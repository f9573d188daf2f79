package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/domain/vendor"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

var tuesday = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

type stubMatcher struct {
	result *match.Result
	err    error
	calls  int
}

func (s *stubMatcher) Match(context.Context, *invoice.Invoice) (*match.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubAssessor struct {
	assessment *risk.Assessment
	err        error
	calls      int
}

func (s *stubAssessor) Assess(context.Context, *invoice.Invoice, *vendor.Vendor) (*risk.Assessment, error) {
	s.calls++
	return s.assessment, s.err
}

func workflowInvoice(confidence float64) *invoice.Invoice {
	return &invoice.Invoice{
		ID:                   common.NewID(),
		VendorID:             common.NewID(),
		VendorName:           "Acme Corp",
		InvoiceNumber:        "INV-3001",
		IssueDate:            tuesday,
		Total:                decimal.NewFromInt(1000),
		Subtotal:             decimal.NewFromInt(1000),
		ExtractionConfidence: confidence,
		Status:               invoice.StatusExtracted,
	}
}

func newOrchestrator(m Matcher, a RiskAssessor) *Orchestrator {
	return NewOrchestrator(m, a, config.NewDefaultConfig().Engine, logging.NewNop())
}

func TestOrchestrator_HappyPathAutoApproves(t *testing.T) {
	matcher := &stubMatcher{result: matched(0.97, false)}
	assessor := &stubAssessor{assessment: assessed(risk.LevelLow, 0.05)}
	o := newOrchestrator(matcher, assessor)

	st, err := o.Run(context.Background(), workflowInvoice(0.95), cleanTestVendor())
	require.NoError(t, err)

	assert.Equal(t, StageDecided, st.Stage)
	assert.Equal(t, DecisionAutoApproved, st.Decision)
	assert.NotEmpty(t, st.Rationale)
	assert.Empty(t, st.Notes)
	assert.NotNil(t, st.CompletedAt)
	assert.Equal(t, 1, matcher.calls)
	assert.Equal(t, 1, assessor.calls)
}

func TestOrchestrator_LowConfidenceErrorsBeforeMatching(t *testing.T) {
	matcher := &stubMatcher{result: matched(0.97, false)}
	assessor := &stubAssessor{assessment: assessed(risk.LevelLow, 0.05)}
	o := newOrchestrator(matcher, assessor)

	st, err := o.Run(context.Background(), workflowInvoice(0.40), cleanTestVendor())
	require.Error(t, err)

	assert.True(t, errors.IsCode(err, errors.ErrCodeIncompleteExtraction))
	assert.True(t, errors.IsFatalWorkflowError(err))
	assert.Equal(t, StageErrored, st.Stage)
	assert.NotEmpty(t, st.FailureReason)
	assert.Equal(t, 0, matcher.calls, "matching must not run on unvalidated extraction")
	assert.Equal(t, 0, assessor.calls)
}

func TestOrchestrator_MatchingFailureIsNotedAndRunContinues(t *testing.T) {
	matcher := &stubMatcher{err: errors.Internal("po store down")}
	assessor := &stubAssessor{assessment: assessed(risk.LevelLow, 0.05)}
	o := newOrchestrator(matcher, assessor)

	st, err := o.Run(context.Background(), workflowInvoice(0.95), cleanTestVendor())
	require.NoError(t, err)

	assert.Equal(t, StageDecided, st.Stage)
	assert.Equal(t, DecisionRequiresReview, st.Decision, "no match evidence can never auto-approve")
	require.Len(t, st.Notes, 1)
	assert.Contains(t, st.Notes[0], "matching unavailable")
	assert.Nil(t, st.MatchResult)
}

func TestOrchestrator_RiskFailureIsNotedAndRunContinues(t *testing.T) {
	matcher := &stubMatcher{result: matched(0.97, false)}
	assessor := &stubAssessor{err: errors.New(errors.ErrCodeCacheError, "redis down")}
	o := newOrchestrator(matcher, assessor)

	st, err := o.Run(context.Background(), workflowInvoice(0.95), cleanTestVendor())
	require.NoError(t, err)

	assert.Equal(t, StageDecided, st.Stage)
	assert.Equal(t, DecisionRequiresReview, st.Decision, "missing risk evidence blocks auto-approval")
	require.Len(t, st.Notes, 1)
	assert.Contains(t, st.Notes[0], "risk assessment unavailable")
	assert.Nil(t, st.RiskAssessment)
}

func TestOrchestrator_BothStagesFailingErrorsTheRun(t *testing.T) {
	matcher := &stubMatcher{err: errors.Internal("po store down")}
	assessor := &stubAssessor{err: errors.New(errors.ErrCodeCacheError, "redis down")}
	o := newOrchestrator(matcher, assessor)

	st, err := o.Run(context.Background(), workflowInvoice(0.95), cleanTestVendor())
	require.Error(t, err)

	assert.True(t, errors.IsCode(err, errors.ErrCodeNoEvidence))
	assert.True(t, errors.IsFatalWorkflowError(err))
	assert.Equal(t, StageErrored, st.Stage)
	assert.Empty(t, st.Decision)
}

func TestOrchestrator_CancelledContextAborts(t *testing.T) {
	matcher := &stubMatcher{result: matched(0.97, false)}
	assessor := &stubAssessor{assessment: assessed(risk.LevelLow, 0.05)}
	o := newOrchestrator(matcher, assessor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := o.Run(ctx, workflowInvoice(0.95), cleanTestVendor())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
	assert.False(t, st.Terminal(), "aborted partial state is not terminal and is meant to be discarded")
}

func TestOrchestrator_ReplayReproducesDecision(t *testing.T) {
	matcher := &stubMatcher{result: matched(0.97, false)}
	assessor := &stubAssessor{assessment: assessed(risk.LevelLow, 0.05)}
	o := newOrchestrator(matcher, assessor)

	st, err := o.Run(context.Background(), workflowInvoice(0.95), cleanTestVendor())
	require.NoError(t, err)

	decision, rationale, err := o.Replay(st)
	require.NoError(t, err)
	assert.Equal(t, st.Decision, decision)
	assert.Equal(t, st.Rationale, rationale)

	_, _, err = o.Replay(NewState(workflowInvoice(0.95), nil, tuesday))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeWorkflowTerminal))
}

func TestState_SnapshotsAreImmutable(t *testing.T) {
	started := NewState(workflowInvoice(0.95), nil, tuesday)

	noted := started.withNote("first gap", tuesday)
	advanced := noted.advance(StageMatched, tuesday)
	decided := advanced.toDecided(DecisionRequiresReview, "default_review", tuesday)

	assert.Equal(t, StageStarted, started.Stage)
	assert.Empty(t, started.Notes)
	assert.Equal(t, StageMatched, advanced.Stage)
	assert.Nil(t, advanced.CompletedAt)
	assert.Equal(t, StageDecided, decided.Stage)

	// Appending to a later snapshot's notes must not leak into earlier ones.
	later := noted.withNote("second gap", tuesday)
	assert.Len(t, noted.Notes, 1)
	assert.Len(t, later.Notes, 2)
}

func TestState_EnsureActive(t *testing.T) {
	st := NewState(workflowInvoice(0.95), nil, tuesday)
	assert.NoError(t, st.EnsureActive())

	decided := st.toDecided(DecisionAutoApproved, "clean_match", tuesday)
	err := decided.EnsureActive()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeWorkflowTerminal))

	errored := st.toErrored("extraction too weak", tuesday)
	assert.Error(t, errored.EnsureActive())
}

func cleanTestVendor() *vendor.Vendor {
	return &vendor.Vendor{
		ID:     common.NewID(),
		Name:   "Acme Corp",
		Active: true,
		Profile: vendor.RiskProfile{
			PaymentReliability: 0.95,
			AvgInvoiceAmount:   decimal.NewFromInt(1200),
			TotalInvoices:      120,
		},
	}
}
