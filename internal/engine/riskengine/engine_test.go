package riskengine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/domain/vendor"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func engineCfg() config.EngineConfig {
	return config.NewDefaultConfig().Engine
}

type stubSignatures struct {
	seen      bool
	seenErr   error
	recent    []invoice.Signature
	recentErr error
}

func (s *stubSignatures) Seen(context.Context, string) (bool, error) {
	return s.seen, s.seenErr
}

func (s *stubSignatures) RecentByVendor(context.Context, common.ID, time.Time, time.Time) ([]invoice.Signature, error) {
	return s.recent, s.recentErr
}

func (s *stubSignatures) Record(context.Context, invoice.Signature) error { return nil }

type stubHistory struct {
	avg map[string]string
	err error
}

func (h *stubHistory) AverageUnitPrice(_ context.Context, _ common.ID, description string) (decimal.Decimal, bool, error) {
	if h.err != nil {
		return decimal.Zero, false, h.err
	}
	raw, ok := h.avg[description]
	if !ok {
		return decimal.Zero, false, nil
	}
	return dec(raw), true, nil
}

func testInvoice(total string, issue time.Time) *invoice.Invoice {
	return &invoice.Invoice{
		ID:                   common.NewID(),
		VendorID:             common.NewID(),
		VendorName:           "Acme Corp",
		InvoiceNumber:        "INV-2001",
		IssueDate:            issue,
		Currency:             "USD",
		Subtotal:             dec(total),
		Total:                dec(total),
		ExtractionConfidence: 0.95,
		Status:               invoice.StatusExtracted,
	}
}

var tuesday = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func cleanVendor() *vendor.Vendor {
	return &vendor.Vendor{
		ID:     common.NewID(),
		Name:   "Acme Corp",
		Active: true,
		Profile: vendor.RiskProfile{
			FraudFlagCount:     0,
			PaymentReliability: 0.95,
			AvgInvoiceAmount:   dec("1200.00"),
			TotalInvoices:      120,
		},
	}
}

func TestDuplicateDetector_ExactHash(t *testing.T) {
	d := NewDuplicateDetector(&stubSignatures{seen: true}, engineCfg())

	score, flags, err := d.Detect(context.Background(), testInvoice("1000.00", tuesday))
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	require.Len(t, flags, 1)
	assert.Equal(t, risk.FlagDuplicateInvoice, flags[0].Type)
	assert.Equal(t, risk.FlagSeverityCritical, flags[0].Severity)
	assert.Equal(t, 1.0, flags[0].Confidence)
}

func TestDuplicateDetector_FuzzyIsSymmetric(t *testing.T) {
	cfg := engineCfg()
	a := testInvoice("1000.00", tuesday)
	b := testInvoice("1005.00", tuesday.AddDate(0, 0, 2))
	b.VendorID = a.VendorID
	b.InvoiceNumber = "INV-2002"

	scoreAB, flagsAB, err := NewDuplicateDetector(&stubSignatures{
		recent: []invoice.Signature{b.ComputeSignature()},
	}, cfg).Detect(context.Background(), a)
	require.NoError(t, err)

	scoreBA, flagsBA, err := NewDuplicateDetector(&stubSignatures{
		recent: []invoice.Signature{a.ComputeSignature()},
	}, cfg).Detect(context.Background(), b)
	require.NoError(t, err)

	assert.InDelta(t, scoreAB, scoreBA, 1e-9, "fuzzy duplicate score must not depend on arrival order")
	assert.Greater(t, scoreAB, 0.5)
	assert.Less(t, scoreAB, 1.0)
	require.Len(t, flagsAB, 1)
	require.Len(t, flagsBA, 1)
	assert.Equal(t, risk.FlagSeverityHigh, flagsAB[0].Severity)
}

func TestDuplicateDetector_OutsideTolerances(t *testing.T) {
	cfg := engineCfg()
	inv := testInvoice("1000.00", tuesday)

	farAmount := testInvoice("1100.00", tuesday)
	farAmount.VendorID = inv.VendorID
	farDate := testInvoice("1000.50", tuesday.AddDate(0, 0, 20))
	farDate.VendorID = inv.VendorID

	score, flags, err := NewDuplicateDetector(&stubSignatures{
		recent: []invoice.Signature{farAmount.ComputeSignature(), farDate.ComputeSignature()},
	}, cfg).Detect(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, flags)
}

func TestVendorScorer(t *testing.T) {
	s := NewVendorScorer(engineCfg())

	score, flags := s.Score(cleanVendor())
	assert.Equal(t, 0.0, score, "long clean history earns the full credit")
	assert.Empty(t, flags)

	risky := cleanVendor()
	risky.Profile.FraudFlagCount = 2
	risky.Profile.PaymentReliability = 0.3
	score, flags = s.Score(risky)
	assert.InDelta(t, 0.60, score, 0.001)
	require.Len(t, flags, 2)
	assert.Equal(t, risk.FlagSeverityHigh, flags[0].Severity)

	score, flags = s.Score(nil)
	assert.Equal(t, 0.0, score)
	require.Len(t, flags, 1)
	assert.Equal(t, risk.FlagEvidenceGap, flags[0].Type)
}

func TestPriceAnomalyDetector(t *testing.T) {
	history := &stubHistory{avg: map[string]string{"industrial bolt M8": "10.00"}}
	d := NewPriceAnomalyDetector(history, engineCfg())

	inv := testInvoice("1850.00", tuesday)
	inv.LineItems = []invoice.LineItem{
		{Description: "industrial bolt M8", Quantity: dec("100"), UnitPrice: dec("18.50"), LineTotal: dec("1850.00")},
	}

	score, flags, err := d.Detect(context.Background(), inv)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, score, 0.001)
	require.Len(t, flags, 1)
	assert.Equal(t, risk.FlagPriceAnomaly, flags[0].Type)
	assert.Equal(t, risk.FlagSeverityHigh, flags[0].Severity)
	assert.InDelta(t, 0.85, flags[0].Confidence, 0.001)
}

func TestPriceAnomalyDetector_ExtremeOvershootIsCritical(t *testing.T) {
	history := &stubHistory{avg: map[string]string{"consulting hour": "100.00"}}
	d := NewPriceAnomalyDetector(history, engineCfg())

	inv := testInvoice("3500.00", tuesday)
	inv.LineItems = []invoice.LineItem{
		{Description: "consulting hour", Quantity: dec("10"), UnitPrice: dec("350.00"), LineTotal: dec("3500.00")},
	}

	score, flags, err := d.Detect(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	require.Len(t, flags, 1)
	assert.Equal(t, risk.FlagSeverityCritical, flags[0].Severity)
}

func TestPriceAnomalyDetector_NoHistory(t *testing.T) {
	d := NewPriceAnomalyDetector(&stubHistory{avg: map[string]string{}}, engineCfg())

	inv := testInvoice("500.00", tuesday)
	inv.LineItems = []invoice.LineItem{
		{Description: "never seen before", Quantity: dec("1"), UnitPrice: dec("500.00")},
	}
	score, flags, err := d.Detect(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, flags)
}

func TestPatternDetector(t *testing.T) {
	d := NewPatternDetector(engineCfg())

	round := testInvoice("5000.00", tuesday)
	score, flags := d.Detect(round, cleanVendor())
	assert.Greater(t, score, 0.0)
	require.NotEmpty(t, flags)
	assert.Equal(t, risk.FlagPatternAnomaly, flags[0].Type)

	ordinary := testInvoice("1234.56", tuesday)
	score, flags = d.Detect(ordinary, cleanVendor())
	assert.Equal(t, 0.0, score)
	assert.Empty(t, flags)
}

func TestEngine_Assess_CleanInvoice(t *testing.T) {
	e := NewEngine(&stubSignatures{}, &stubHistory{}, engineCfg(), logging.NewNop())

	a, err := e.Assess(context.Background(), testInvoice("1234.56", tuesday), cleanVendor())
	require.NoError(t, err)
	assert.Equal(t, risk.LevelLow, a.Level)
	assert.False(t, a.RequiresManualReview)
	assert.Equal(t, risk.ActionApprove, a.RecommendedAction)
	assert.Empty(t, a.Flags)
}

func TestEngine_Assess_ExactDuplicateIsCritical(t *testing.T) {
	e := NewEngine(&stubSignatures{seen: true}, &stubHistory{}, engineCfg(), logging.NewNop())

	a, err := e.Assess(context.Background(), testInvoice("1234.56", tuesday), cleanVendor())
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.SubScores.Duplicate)
	assert.Equal(t, 1, a.CriticalFlagCount)
	// The weighted blend alone would land well below critical; an exact
	// resubmission overrides it.
	assert.Equal(t, risk.LevelCritical, a.Level)
	assert.Equal(t, risk.ActionReject, a.RecommendedAction)
	assert.True(t, a.RequiresManualReview)
	assert.GreaterOrEqual(t, a.Score, 0.30)
}

func TestEngine_Assess_CompoundSignalsReachHigh(t *testing.T) {
	risky := cleanVendor()
	risky.Profile.FraudFlagCount = 2
	risky.Profile.PaymentReliability = 0.2
	risky.Profile.AvgInvoiceAmount = dec("1000.00")

	e := NewEngine(&stubSignatures{seen: true}, &stubHistory{}, engineCfg(), logging.NewNop())

	a, err := e.Assess(context.Background(), testInvoice("5000.00", tuesday), risky)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a.Score, engineCfg().HighRiskThreshold)
	assert.Contains(t, []risk.Level{risk.LevelHigh, risk.LevelCritical}, a.Level)
	assert.True(t, a.RequiresManualReview)
}

func TestEngine_Assess_StoreFailureDegradesToGap(t *testing.T) {
	store := &stubSignatures{seenErr: errors.New(errors.ErrCodeCacheError, "redis down")}
	history := &stubHistory{err: errors.New(errors.ErrCodeDatabaseError, "pg down")}
	e := NewEngine(store, history, engineCfg(), logging.NewNop())

	inv := testInvoice("1234.56", tuesday)
	inv.LineItems = []invoice.LineItem{{Description: "anything", Quantity: dec("1"), UnitPrice: dec("1234.56")}}

	a, err := e.Assess(context.Background(), inv, cleanVendor())
	require.NoError(t, err, "sub-check failures degrade, they do not fail the assessment")
	assert.Equal(t, 0.0, a.SubScores.Duplicate)
	assert.Equal(t, 0.0, a.SubScores.Price)
	assert.Equal(t, 2, risk.CountFlags(a.Flags, risk.FlagSeverityMedium))
}

func TestEngine_Assess_CancelledContext(t *testing.T) {
	e := NewEngine(&stubSignatures{}, &stubHistory{}, engineCfg(), logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Assess(ctx, testInvoice("1234.56", tuesday), cleanVendor())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}
