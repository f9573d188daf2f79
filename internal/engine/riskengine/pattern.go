package riskengine

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/domain/vendor"
)

var hundred = decimal.NewFromInt(100)

// PatternDetector runs deterministic structural heuristics over the invoice
// itself: signals that need no external evidence but correlate with manual
// fabrication. Each heuristic contributes a fixed increment; the sub-score
// is their capped sum.
type PatternDetector struct {
	cfg config.EngineConfig
}

// NewPatternDetector builds a detector with the given engine configuration.
func NewPatternDetector(cfg config.EngineConfig) *PatternDetector {
	return &PatternDetector{cfg: cfg}
}

// Detect returns the pattern sub-score in [0,1] and its flags.
func (d *PatternDetector) Detect(inv *invoice.Invoice, v *vendor.Vendor) (float64, []risk.Flag) {
	score := 0.0
	var flags []risk.Flag

	if d.roundTotal(inv) {
		score += 0.35
		flags = append(flags, risk.Flag{
			Type:        risk.FlagPatternAnomaly,
			Severity:    risk.FlagSeverityLow,
			Description: fmt.Sprintf("invoice total %s is a suspiciously round amount", inv.Total.StringFixed(2)),
			Confidence:  0.35,
		})
	}

	if wd := inv.IssueDate.Weekday(); wd == time.Saturday || wd == time.Sunday {
		score += 0.15
		flags = append(flags, risk.Flag{
			Type:        risk.FlagPatternAnomaly,
			Severity:    risk.FlagSeverityLow,
			Description: fmt.Sprintf("invoice issued on a %s", wd),
			Confidence:  0.15,
		})
	}

	if !inv.TotalsConsistent() {
		score += 0.30
		flags = append(flags, risk.Flag{
			Type:        risk.FlagPatternAnomaly,
			Severity:    risk.FlagSeverityMedium,
			Description: "declared total does not equal subtotal plus tax",
			Confidence:  0.30,
		})
	}

	if v != nil && !v.Profile.AvgInvoiceAmount.IsZero() {
		ratio, _ := inv.Total.Div(v.Profile.AvgInvoiceAmount).Float64()
		if ratio >= 5 {
			score += 0.25
			flags = append(flags, risk.Flag{
				Type:        risk.FlagPatternAnomaly,
				Severity:    risk.FlagSeverityMedium,
				Description: fmt.Sprintf("invoice total is %.1fx the vendor's historical average", ratio),
				Confidence:  0.25,
			})
		}
	}

	return math.Min(1, score), flags
}

// roundTotal reports whether the total is a large multiple of 100: genuine
// itemized invoices rarely land on one.
func (d *PatternDetector) roundTotal(inv *invoice.Invoice) bool {
	if inv.Total.LessThan(decimal.NewFromInt(500)) {
		return false
	}
	return inv.Total.Mod(hundred).IsZero()
}
