// Package riskengine implements the fraud and risk assessment stage: four
// independent detectors plus an amount-anomaly check, fanned out
// concurrently and aggregated into a weighted assessment.
package riskengine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/domain/vendor"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// Engine aggregates the risk sub-checks into one assessment. Sub-checks
// that depend on external stores degrade to evidence gaps on failure; the
// assessment as a whole fails only on context cancellation.
type Engine struct {
	duplicates *DuplicateDetector
	vendors    *VendorScorer
	prices     *PriceAnomalyDetector
	patterns   *PatternDetector
	cfg        config.EngineConfig
	logger     logging.Logger
}

// NewEngine wires the risk stage over its evidence sources.
func NewEngine(store invoice.SignatureStore, history PriceHistoryProvider, cfg config.EngineConfig, logger logging.Logger) *Engine {
	return &Engine{
		duplicates: NewDuplicateDetector(store, cfg),
		vendors:    NewVendorScorer(cfg),
		prices:     NewPriceAnomalyDetector(history, cfg),
		patterns:   NewPatternDetector(cfg),
		cfg:        cfg,
		logger:     logger.Named("risk"),
	}
}

// Assess runs every sub-check and returns the aggregated assessment. The
// vendor snapshot may be nil; the vendor dimension then records an evidence
// gap and scores zero.
func (e *Engine) Assess(ctx context.Context, inv *invoice.Invoice, v *vendor.Vendor) (*risk.Assessment, error) {
	var (
		wg sync.WaitGroup

		dupScore, priceScore float64
		dupFlags, priceFlags []risk.Flag
		dupErr, priceErr     error
	)

	// The duplicate and price checks hit external stores; run them in
	// parallel while the pure checks compute inline.
	wg.Add(2)
	go func() {
		defer wg.Done()
		dupScore, dupFlags, dupErr = e.duplicates.Detect(ctx, inv)
	}()
	go func() {
		defer wg.Done()
		priceScore, priceFlags, priceErr = e.prices.Detect(ctx, inv)
	}()

	vendorScore, vendorFlags := e.vendors.Score(v)
	patternScore, patternFlags := e.patterns.Detect(inv, v)
	amountScore, amountFlags := e.amountAnomaly(inv, v)

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "risk assessment aborted")
	}

	flags := make([]risk.Flag, 0, 8)
	flags = append(flags, vendorFlags...)
	flags = append(flags, patternFlags...)
	flags = append(flags, amountFlags...)

	if dupErr != nil {
		e.logger.Warn("duplicate check unavailable", logging.String("invoice_id", string(inv.ID)), logging.Err(dupErr))
		dupScore = 0
		flags = append(flags, evidenceGapFlag("duplicate check unavailable"))
	} else {
		flags = append(flags, dupFlags...)
	}
	if priceErr != nil {
		e.logger.Warn("price history unavailable", logging.String("invoice_id", string(inv.ID)), logging.Err(priceErr))
		priceScore = 0
		flags = append(flags, evidenceGapFlag("price history unavailable"))
	} else {
		flags = append(flags, priceFlags...)
	}

	sub := risk.SubScores{
		Duplicate: dupScore,
		Vendor:    vendorScore,
		Price:     priceScore,
		Amount:    amountScore,
		Pattern:   patternScore,
	}
	w := e.cfg.RiskWeights
	total := clamp01(w.Duplicate*sub.Duplicate +
		w.Vendor*sub.Vendor +
		w.Price*sub.Price +
		w.Amount*sub.Amount +
		w.Pattern*sub.Pattern)

	level := e.level(total)
	// An exact resubmission is conclusive on its own; the weighted blend
	// must not dilute it below critical.
	if sub.Duplicate >= 1.0 {
		level = risk.LevelCritical
	}
	critical := risk.CountFlags(flags, risk.FlagSeverityCritical)
	high := risk.CountFlags(flags, risk.FlagSeverityHigh)

	a := &risk.Assessment{
		ID:                   common.NewID(),
		InvoiceID:            inv.ID,
		VendorID:             inv.VendorID,
		Level:                level,
		Score:                total,
		SubScores:            sub,
		Flags:                flags,
		CriticalFlagCount:    critical,
		HighFlagCount:        high,
		RecommendedAction:    risk.ActionForLevel(level),
		RequiresManualReview: level != risk.LevelLow || critical > 0 || high > 0,
		CreatedAt:            time.Now().UTC(),
	}

	e.logger.Info("risk assessment complete",
		logging.String("invoice_id", string(inv.ID)),
		logging.String("level", string(level)),
		logging.Float64("score", total),
		logging.Int("flags", len(flags)))
	return a, nil
}

// amountAnomaly grades the invoice total against the vendor's historical
// average. The sub-score saturates at three times the average deviation;
// totals above triple the average raise a high flag.
func (e *Engine) amountAnomaly(inv *invoice.Invoice, v *vendor.Vendor) (float64, []risk.Flag) {
	if v == nil || v.Profile.AvgInvoiceAmount.IsZero() {
		return 0, nil
	}
	avg := v.Profile.AvgInvoiceAmount
	rel, _ := inv.Total.Sub(avg).Abs().Div(avg).Float64()
	score := math.Min(1, rel/3)

	var flags []risk.Flag
	ratio, _ := inv.Total.Div(avg).Float64()
	if ratio > 3 {
		flags = append(flags, risk.Flag{
			Type:        risk.FlagAmountAnomaly,
			Severity:    risk.FlagSeverityHigh,
			Description: fmt.Sprintf("invoice total %s exceeds three times the vendor average %s", inv.Total.StringFixed(2), avg.StringFixed(2)),
			Confidence:  math.Min(1, rel/3),
		})
	}
	return score, flags
}

func (e *Engine) level(score float64) risk.Level {
	switch {
	case score >= e.cfg.CriticalRiskThreshold:
		return risk.LevelCritical
	case score >= e.cfg.HighRiskThreshold:
		return risk.LevelHigh
	case score >= e.cfg.MediumRiskThreshold:
		return risk.LevelMedium
	default:
		return risk.LevelLow
	}
}

func evidenceGapFlag(description string) risk.Flag {
	return risk.Flag{
		Type:        risk.FlagEvidenceGap,
		Severity:    risk.FlagSeverityMedium,
		Description: description,
		Confidence:  1.0,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
