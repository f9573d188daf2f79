// Package matching implements the purchase order reconciliation stage:
// candidate selection, multi-dimension scoring, discrepancy detection, and
// the optional reasoning consult on ambiguous scores.
package matching

import (
	"context"
	"time"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/purchaseorder"
	"github.com/apclear/invoicegate/internal/engine/reasoning"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// Engine runs the full matching stage for one invoice and produces an
// immutable match result. It never mutates purchase orders; ApplyMatch
// bookkeeping belongs to the application layer after a decision is recorded.
type Engine struct {
	selector *CandidateSelector
	scorer   *Scorer
	detector *DiscrepancyDetector
	reasoner reasoning.Reasoner
	cfg      config.EngineConfig
	logger   logging.Logger
}

// NewEngine wires the matching stage. Pass reasoning.Noop{} when the
// collaborator is disabled.
func NewEngine(orders purchaseorder.Repository, reasoner reasoning.Reasoner, cfg config.EngineConfig, logger logging.Logger) *Engine {
	l := logger.Named("matching")
	return &Engine{
		selector: NewCandidateSelector(orders, cfg, l),
		scorer:   NewScorer(cfg),
		detector: NewDiscrepancyDetector(cfg),
		reasoner: reasoner,
		cfg:      cfg,
		logger:   l,
	}
}

// Match scores the invoice against every candidate order and returns the
// result for the best one. With no candidates, or none scoring above the
// partial threshold, the result carries type none and a nil order id.
func (e *Engine) Match(ctx context.Context, inv *invoice.Invoice) (*match.Result, error) {
	candidates, err := e.selector.Select(ctx, inv)
	if err != nil {
		return nil, err
	}

	res := &match.Result{
		ID:               common.NewID(),
		InvoiceID:        inv.ID,
		Type:             match.TypeNone,
		RequiresApproval: true,
		CreatedAt:        time.Now().UTC(),
	}
	if len(candidates) == 0 {
		e.logger.Info("no candidate purchase orders", logging.String("invoice_id", string(inv.ID)))
		return res, nil
	}

	best := candidates[0]
	bestScore, bestDims := e.scorer.Score(inv, best)
	for _, po := range candidates[1:] {
		score, dims := e.scorer.Score(inv, po)
		if score > bestScore || (score == bestScore && e.closerByAmount(inv, po, best)) {
			best, bestScore, bestDims = po, score, dims
		}
	}

	res.Score = bestScore
	res.Dimensions = bestDims
	res.Type = e.scorer.Classify(bestScore)
	if res.Type == match.TypeNone {
		e.logger.Info("best candidate below partial threshold",
			logging.String("invoice_id", string(inv.ID)),
			logging.Float64("score", bestScore))
		return res, nil
	}

	poID := best.ID
	res.PurchaseOrderID = &poID
	res.Discrepancies = e.detector.Detect(inv, best)
	res.RequiresApproval = res.HasCriticalDiscrepancy() || bestScore < e.cfg.ApprovalScoreThreshold

	e.consultReasoner(ctx, inv, best, res)

	e.logger.Info("match complete",
		logging.String("invoice_id", string(inv.ID)),
		logging.String("purchase_order_id", string(best.ID)),
		logging.String("type", string(res.Type)),
		logging.Float64("score", bestScore),
		logging.Int("discrepancies", len(res.Discrepancies)),
		logging.Bool("requires_approval", res.RequiresApproval))
	return res, nil
}

// closerByAmount breaks score ties toward the order with the smaller
// absolute amount deviation from the invoice total.
func (e *Engine) closerByAmount(inv *invoice.Invoice, a, b *purchaseorder.PurchaseOrder) bool {
	da := a.TotalAmount.Sub(inv.Total).Abs()
	db := b.TotalAmount.Sub(inv.Total).Abs()
	return da.LessThan(db)
}

// consultReasoner asks the collaborator for an approve-vs-review call when
// the score lands in the ambiguous band and no discrepancy is critical. Any
// failure, including timeouts, leaves the algorithmic verdict in place.
func (e *Engine) consultReasoner(ctx context.Context, inv *invoice.Invoice, po *purchaseorder.PurchaseOrder, res *match.Result) {
	if res.Score < e.cfg.AmbiguousBandLow || res.Score >= e.cfg.AmbiguousBandHigh {
		return
	}
	if res.HasCriticalDiscrepancy() {
		return
	}

	opinion, err := e.reasoner.Review(ctx, reasoning.Request{
		Invoice:       inv,
		Order:         po,
		Score:         res.Score,
		Dimensions:    res.Dimensions,
		Discrepancies: res.Discrepancies,
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeCollaboratorTimeout) {
			e.logger.Warn("reasoning collaborator timed out, algorithmic verdict stands",
				logging.String("invoice_id", string(inv.ID)))
		} else {
			e.logger.Warn("reasoning collaborator unavailable, algorithmic verdict stands",
				logging.String("invoice_id", string(inv.ID)), logging.Err(err))
		}
		return
	}
	if opinion == nil {
		return
	}

	res.ReasonerNote = opinion.Justification
	switch opinion.Verdict {
	case reasoning.VerdictApprove:
		res.RequiresApproval = false
	case reasoning.VerdictReview:
		res.RequiresApproval = true
	}
}
