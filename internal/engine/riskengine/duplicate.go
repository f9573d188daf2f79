package riskengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// DuplicateDetector checks an invoice against the signature store. An exact
// content-hash collision is a certain duplicate; a same-vendor signature with
// a close amount and nearby issue date is a probable resubmission.
type DuplicateDetector struct {
	store invoice.SignatureStore
	cfg   config.EngineConfig
}

// NewDuplicateDetector builds a detector over the given signature store.
func NewDuplicateDetector(store invoice.SignatureStore, cfg config.EngineConfig) *DuplicateDetector {
	return &DuplicateDetector{store: store, cfg: cfg}
}

// Detect returns the duplicate sub-score in [0,1] and its flags. An exact
// hash collision scores 1.0; the best fuzzy candidate scores in (0.5, 1.0)
// proportional to how close its amount and date are.
func (d *DuplicateDetector) Detect(ctx context.Context, inv *invoice.Invoice) (float64, []risk.Flag, error) {
	sig := inv.ComputeSignature()

	seen, err := d.store.Seen(ctx, sig.Hash)
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.ErrCodeCacheError, "duplicate hash lookup failed")
	}
	if seen {
		return 1.0, []risk.Flag{{
			Type:        risk.FlagDuplicateInvoice,
			Severity:    risk.FlagSeverityCritical,
			Description: fmt.Sprintf("invoice %s is an exact resubmission of a previously processed invoice", inv.InvoiceNumber),
			Confidence:  1.0,
			Details:     common.Metadata{"hash": sig.Hash},
		}}, nil
	}

	window := d.cfg.DuplicateDateWindowDays
	from := inv.IssueDate.AddDate(0, 0, -window)
	to := inv.IssueDate.AddDate(0, 0, window)
	recent, err := d.store.RecentByVendor(ctx, inv.VendorID, from, to)
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.ErrCodeCacheError, "recent signature lookup failed")
	}

	best := 0.0
	var bestSig *invoice.Signature
	for i := range recent {
		prior := recent[i]
		if prior.Hash == sig.Hash || prior.InvoiceID == inv.ID {
			continue
		}
		score, ok := d.fuzzyScore(inv, prior)
		if ok && score > best {
			best = score
			bestSig = &recent[i]
		}
	}
	if bestSig == nil {
		return 0, nil, nil
	}

	flag := risk.Flag{
		Type:     risk.FlagDuplicateInvoice,
		Severity: risk.FlagSeverityHigh,
		Description: fmt.Sprintf("invoice %s closely resembles prior invoice %s (%s on %s)",
			inv.InvoiceNumber, bestSig.InvoiceNumber,
			bestSig.Total.StringFixed(2), bestSig.IssueDate.UTC().Format("2006-01-02")),
		Confidence: best,
		Details:    common.Metadata{"prior_invoice_id": string(bestSig.InvoiceID)},
	}
	return best, []risk.Flag{flag}, nil
}

// fuzzyScore grades how closely a prior signature resembles the invoice.
// Both the amount and date must fall inside their tolerance windows; the
// score then rises from 0.5 toward 0.99 as the pair converges, always below
// the 1.0 reserved for exact hash collisions. The comparison is symmetric:
// swapping which invoice arrived first yields the same score.
func (d *DuplicateDetector) fuzzyScore(inv *invoice.Invoice, prior invoice.Signature) (float64, bool) {
	amountDev := symmetricDeviation(inv.Total.InexactFloat64(), prior.Total.InexactFloat64())
	if amountDev > d.cfg.DuplicateAmountTolerance {
		return 0, false
	}
	gapDays := math.Abs(inv.IssueDate.Sub(prior.IssueDate).Hours()) / 24
	windowDays := float64(d.cfg.DuplicateDateWindowDays)
	if gapDays > windowDays {
		return 0, false
	}

	amountCloseness := 1 - amountDev/d.cfg.DuplicateAmountTolerance
	dateCloseness := 1 - gapDays/windowDays
	return 0.5 + 0.49*(amountCloseness+dateCloseness)/2, true
}

// symmetricDeviation is |a-b| relative to the larger magnitude, so the
// result does not depend on argument order.
func symmetricDeviation(a, b float64) float64 {
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return 0
	}
	return math.Abs(a-b) / larger
}

// Window is the fuzzy-duplicate lookback span, used for retention sizing.
func (d *DuplicateDetector) Window() time.Duration {
	return time.Duration(d.cfg.DuplicateDateWindowDays) * 24 * time.Hour
}
