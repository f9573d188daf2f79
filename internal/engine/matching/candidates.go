package matching

import (
	"context"
	"sort"
	"strings"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/purchaseorder"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
)

// CandidateSelector proposes the purchase orders an invoice could plausibly
// settle: the vendor's matchable orders whose total falls inside the relative
// amount band around the invoice total. An order explicitly referenced on the
// invoice is always proposed, band or not.
type CandidateSelector struct {
	orders purchaseorder.Repository
	cfg    config.EngineConfig
	logger logging.Logger
}

// NewCandidateSelector builds a selector over the given order repository.
func NewCandidateSelector(orders purchaseorder.Repository, cfg config.EngineConfig, logger logging.Logger) *CandidateSelector {
	return &CandidateSelector{orders: orders, cfg: cfg, logger: logger.Named("candidates")}
}

// Select returns the candidate orders sorted by ascending amount deviation
// from the invoice total. An empty slice means no candidate exists; that is
// a valid outcome, not an error.
func (s *CandidateSelector) Select(ctx context.Context, inv *invoice.Invoice) ([]*purchaseorder.PurchaseOrder, error) {
	orders, err := s.orders.FindMatchableByVendor(ctx, inv.VendorID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load matchable purchase orders")
	}

	reference := strings.TrimSpace(inv.POReference)
	out := make([]*purchaseorder.PurchaseOrder, 0, len(orders))
	for _, po := range orders {
		if !po.Status.Matchable() {
			continue
		}
		if reference != "" && string(po.ID) == reference {
			out = append(out, po)
			continue
		}
		if s.withinBand(inv, po) {
			out = append(out, po)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		di := out[i].TotalAmount.Sub(inv.Total).Abs()
		dj := out[j].TotalAmount.Sub(inv.Total).Abs()
		return di.LessThan(dj)
	})

	s.logger.Debug("candidate selection complete",
		logging.String("invoice_id", string(inv.ID)),
		logging.Int("matchable", len(orders)),
		logging.Int("candidates", len(out)))
	return out, nil
}

// withinBand checks |invoice total - order total| / invoice total against the
// configured tolerance. A zero-total invoice only bands with zero-total orders.
func (s *CandidateSelector) withinBand(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) bool {
	if inv.Total.IsZero() {
		return po.TotalAmount.IsZero()
	}
	dev, _ := inv.Total.Sub(po.TotalAmount).Abs().Div(inv.Total.Abs()).Float64()
	return dev <= s.cfg.CandidateAmountTolerance
}
