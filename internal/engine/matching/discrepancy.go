package matching

import (
	"fmt"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/purchaseorder"
	"github.com/apclear/invoicegate/internal/domain/vendor"
)

// DiscrepancyDetector enumerates the field-level mismatches between an
// invoice and the purchase order it was matched to. Detection runs only
// against the winning candidate; the scorer has already absorbed mismatch
// magnitude into the score, discrepancies make it explainable.
type DiscrepancyDetector struct {
	cfg config.EngineConfig
}

// NewDiscrepancyDetector builds a detector with the given engine configuration.
func NewDiscrepancyDetector(cfg config.EngineConfig) *DiscrepancyDetector {
	return &DiscrepancyDetector{cfg: cfg}
}

// Detect returns all discrepancies between inv and po, possibly none.
func (d *DiscrepancyDetector) Detect(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) []match.Discrepancy {
	var out []match.Discrepancy
	out = append(out, d.vendorDiscrepancy(inv, po)...)
	out = append(out, d.amountDiscrepancy(inv, po)...)
	out = append(out, d.dateDiscrepancy(inv, po)...)
	out = append(out, d.lineItemDiscrepancies(inv, po)...)
	return out
}

func (d *DiscrepancyDetector) vendorDiscrepancy(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) []match.Discrepancy {
	a := vendor.NormalizeName(inv.VendorName)
	b := vendor.NormalizeName(po.VendorName)
	if a == b {
		return nil
	}
	severity := match.SeverityMajor
	if Similarity(a, b) >= d.cfg.FuzzyMatchThreshold {
		severity = match.SeverityMinor
	}
	return []match.Discrepancy{{
		Type:         match.DiscrepancyVendor,
		Severity:     severity,
		Description:  "vendor names differ after normalization",
		InvoiceValue: inv.VendorName,
		POValue:      po.VendorName,
	}}
}

func (d *DiscrepancyDetector) amountDiscrepancy(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) []match.Discrepancy {
	if inv.Total.Equal(po.TotalAmount) {
		return nil
	}
	dev := rawDeviation(inv.Total, po.TotalAmount)
	severity := match.SeverityMinor
	switch {
	case dev > d.cfg.CriticalAmountDeviation:
		severity = match.SeverityCritical
	case dev >= d.cfg.MinorAmountDeviation:
		severity = match.SeverityMajor
	}
	return []match.Discrepancy{{
		Type:         match.DiscrepancyAmount,
		Severity:     severity,
		Description:  fmt.Sprintf("invoice total deviates %.1f%% from order total", dev*100),
		InvoiceValue: inv.Total.StringFixed(2),
		POValue:      po.TotalAmount.StringFixed(2),
	}}
}

func (d *DiscrepancyDetector) dateDiscrepancy(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) []match.Discrepancy {
	gap := dateGapDays(inv.IssueDate, po)
	window := float64(d.cfg.DateWindowDays)
	if gap <= window {
		return nil
	}
	return []match.Discrepancy{{
		Type:         match.DiscrepancyDate,
		Severity:     match.SeverityMajor,
		Description:  fmt.Sprintf("issue date is %.0f days outside the %d-day window", gap-window, d.cfg.DateWindowDays),
		InvoiceValue: inv.IssueDate.UTC().Format("2006-01-02"),
		POValue:      po.CreatedAt.UTC().Format("2006-01-02"),
	}}
}

func (d *DiscrepancyDetector) lineItemDiscrepancies(inv *invoice.Invoice, po *purchaseorder.PurchaseOrder) []match.Discrepancy {
	pairs, unmatched := pairLineItems(inv.LineItems, po.LineItems, d.cfg.LineSimilarityThreshold)

	var out []match.Discrepancy
	for _, il := range unmatched {
		out = append(out, match.Discrepancy{
			Type:         match.DiscrepancyLineItem,
			Severity:     match.SeverityMajor,
			Description:  "invoice line has no corresponding order line",
			InvoiceValue: il.Description,
		})
	}
	for _, p := range pairs {
		if dev := rawDeviation(p.invoiceLine.Quantity, p.orderLine.QuantityOrdered); dev > d.cfg.QuantityTolerance {
			out = append(out, match.Discrepancy{
				Type:         match.DiscrepancyLineItem,
				Severity:     match.SeverityMajor,
				Description:  fmt.Sprintf("billed quantity deviates %.1f%% from ordered quantity for %q", dev*100, p.invoiceLine.Description),
				InvoiceValue: p.invoiceLine.Quantity.String(),
				POValue:      p.orderLine.QuantityOrdered.String(),
			})
		}
		if dev := rawDeviation(p.invoiceLine.UnitPrice, p.orderLine.UnitPrice); dev > d.cfg.PriceTolerance {
			out = append(out, match.Discrepancy{
				Type:         match.DiscrepancyLineItem,
				Severity:     match.SeverityMajor,
				Description:  fmt.Sprintf("billed unit price deviates %.1f%% from ordered unit price for %q", dev*100, p.invoiceLine.Description),
				InvoiceValue: p.invoiceLine.UnitPrice.StringFixed(2),
				POValue:      p.orderLine.UnitPrice.StringFixed(2),
			})
		}
	}
	return out
}
