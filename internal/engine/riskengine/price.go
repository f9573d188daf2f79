package riskengine

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// PriceHistoryProvider supplies the historical average unit price a vendor
// has billed for a line description. ok is false when no history exists.
type PriceHistoryProvider interface {
	AverageUnitPrice(ctx context.Context, vendorID common.ID, description string) (avg decimal.Decimal, ok bool, err error)
}

// PriceAnomalyDetector flags line items billed well above the vendor's
// historical average for the same description. Underpricing is not flagged;
// only overcharging is a payment risk.
type PriceAnomalyDetector struct {
	history PriceHistoryProvider
	cfg     config.EngineConfig
}

// NewPriceAnomalyDetector builds a detector over the given history provider.
func NewPriceAnomalyDetector(history PriceHistoryProvider, cfg config.EngineConfig) *PriceAnomalyDetector {
	return &PriceAnomalyDetector{history: history, cfg: cfg}
}

// Detect returns the price sub-score in [0,1] and one flag per anomalous
// line. The sub-score is the worst overshoot across lines, capped at 1;
// lines without history contribute nothing.
func (d *PriceAnomalyDetector) Detect(ctx context.Context, inv *invoice.Invoice) (float64, []risk.Flag, error) {
	worst := 0.0
	var flags []risk.Flag

	for _, line := range inv.LineItems {
		avg, ok, err := d.history.AverageUnitPrice(ctx, inv.VendorID, line.Description)
		if err != nil {
			return 0, nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "price history lookup failed")
		}
		if !ok || avg.IsZero() {
			continue
		}

		overshoot, _ := line.UnitPrice.Sub(avg).Div(avg).Float64()
		if overshoot <= 0 {
			continue
		}
		if overshoot > worst {
			worst = overshoot
		}
		if overshoot <= d.cfg.PriceAnomalyThreshold {
			continue
		}

		severity := risk.FlagSeverityHigh
		if overshoot >= 2.0 {
			severity = risk.FlagSeverityCritical
		}
		flags = append(flags, risk.Flag{
			Type:     risk.FlagPriceAnomaly,
			Severity: severity,
			Description: fmt.Sprintf("unit price for %q is %.0f%% above the historical average of %s",
				line.Description, overshoot*100, avg.StringFixed(2)),
			Confidence: math.Min(1, overshoot),
			Details: common.Metadata{
				"billed":  line.UnitPrice.StringFixed(2),
				"average": avg.StringFixed(2),
			},
		})
	}
	return math.Min(1, worst), flags, nil
}
