package matching

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/purchaseorder"
	"github.com/apclear/invoicegate/internal/domain/vendor"
)

// Scorer computes the weighted multi-dimension match score between an
// invoice and a single candidate purchase order. All thresholds and weights
// come from EngineConfig; the scorer itself holds no mutable state and is
// safe for concurrent use.
type Scorer struct {
	cfg config.EngineConfig
}

// NewScorer builds a scorer with the given engine configuration.
func NewScorer(cfg config.EngineConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the overall weighted score and its per-dimension breakdown.
func (s *Scorer) Score(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) (float64, match.DimensionScores) {
	dims := match.DimensionScores{
		Vendor:    s.vendorScore(inv, po),
		Amount:    s.amountScore(inv, po),
		Date:      s.dateScore(inv, po),
		LineItems: s.lineItemScore(inv, po),
	}
	w := s.cfg.MatchWeights
	overall := w.Vendor*dims.Vendor +
		w.Amount*dims.Amount +
		w.Date*dims.Date +
		w.LineItems*dims.LineItems
	return clamp01(overall), dims
}

// Classify maps an overall score onto a match type.
func (s *Scorer) Classify(score float64) match.Type {
	switch {
	case score >= s.cfg.ExactMatchThreshold:
		return match.TypeExact
	case score >= s.cfg.FuzzyMatchThreshold:
		return match.TypeFuzzy
	case score >= s.cfg.PartialMatchThreshold:
		return match.TypePartial
	default:
		return match.TypeNone
	}
}

// vendorScore compares normalized vendor names: exact normalized equality is
// 1.0, anything else is edit-distance similarity.
func (s *Scorer) vendorScore(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) float64 {
	a := vendor.NormalizeName(inv.VendorName)
	b := vendor.NormalizeName(po.VendorName)
	if a == b {
		return 1
	}
	return Similarity(a, b)
}

// amountScore decays linearly with the relative deviation of the invoice
// total from the order total, bottoming out at 0 for deviations of 100%+.
func (s *Scorer) amountScore(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) float64 {
	return clamp01(1 - relativeDeviation(inv.Total, po.TotalAmount))
}

// dateScore decays linearly over the configured window, measured from the
// issue date to the nearer of order creation and expected delivery.
func (s *Scorer) dateScore(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) float64 {
	gap := dateGapDays(inv.IssueDate, po)
	return clamp01(1 - gap/float64(s.cfg.DateWindowDays))
}

// lineItemScore averages the fraction of invoice lines that paired with an
// order line and the mean unit-price accuracy of those pairs. An invoice
// without line items scores neutrally.
func (s *Scorer) lineItemScore(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) float64 {
	if len(inv.LineItems) == 0 {
		return 1
	}
	pairs, _ := pairLineItems(inv.LineItems, po.LineItems, s.cfg.LineSimilarityThreshold)
	matchedFraction := float64(len(pairs)) / float64(len(inv.LineItems))

	priceAccuracy := 0.0
	if len(pairs) > 0 {
		sum := 0.0
		for _, p := range pairs {
			sum += clamp01(1 - relativeDeviation(p.invoiceLine.UnitPrice, p.orderLine.UnitPrice))
		}
		priceAccuracy = sum / float64(len(pairs))
	}
	return (matchedFraction + priceAccuracy) / 2
}

// linePair is one invoice line greedily matched to its most similar unused
// order line.
type linePair struct {
	invoiceLine invoice.LineItem
	orderLine   purchaseorder.LineItem
	similarity  float64
}

// pairLineItems greedily pairs each invoice line with the most similar
// not-yet-paired order line at or above simThreshold. It returns the pairs
// and the invoice lines left unpaired.
func pairLineItems(invLines []invoice.LineItem, poLines []purchaseorder.LineItem, simThreshold float64) ([]linePair, []invoice.LineItem) {
	used := make([]bool, len(poLines))
	pairs := make([]linePair, 0, len(invLines))
	var unmatched []invoice.LineItem

	for _, il := range invLines {
		best := -1
		bestSim := 0.0
		desc := normalizeDescription(il.Description)
		for j, pl := range poLines {
			if used[j] {
				continue
			}
			sim := Similarity(desc, normalizeDescription(pl.Description))
			if sim >= simThreshold && sim > bestSim {
				best = j
				bestSim = sim
			}
		}
		if best < 0 {
			unmatched = append(unmatched, il)
			continue
		}
		used[best] = true
		pairs = append(pairs, linePair{invoiceLine: il, orderLine: poLines[best], similarity: bestSim})
	}
	return pairs, unmatched
}

// relativeDeviation is |a-b| / |b|, capped at 1. A zero baseline deviates
// fully unless a is also zero.
func relativeDeviation(a, b decimal.Decimal) float64 {
	if b.IsZero() {
		if a.IsZero() {
			return 0
		}
		return 1
	}
	dev, _ := a.Sub(b).Abs().Div(b.Abs()).Float64()
	if dev > 1 {
		return 1
	}
	return dev
}

// rawDeviation is |a-b| / |b| without the cap, for severity banding.
func rawDeviation(a, b decimal.Decimal) float64 {
	if b.IsZero() {
		if a.IsZero() {
			return 0
		}
		return math.Inf(1)
	}
	dev, _ := a.Sub(b).Abs().Div(b.Abs()).Float64()
	return dev
}

// dateGapDays is the distance in days from the issue date to the nearer of
// the order's creation date and expected delivery date.
func dateGapDays(issue time.Time, po *purchaseorder.PurchaseOrder) float64 {
	gap := math.Abs(issue.Sub(po.CreatedAt).Hours()) / 24
	if !po.ExpectedDelivery.IsZero() {
		if g := math.Abs(issue.Sub(po.ExpectedDelivery).Hours()) / 24; g < gap {
			gap = g
		}
	}
	return gap
}
