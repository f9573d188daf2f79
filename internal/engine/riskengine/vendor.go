package riskengine

import (
	"fmt"
	"math"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/domain/vendor"
)

// VendorScorer grades the vendor's historical behaviour: fraud flags raise
// the score, payment reliability lowers it, and a long clean history earns
// a credit. Pure computation, no I/O.
type VendorScorer struct {
	cfg config.EngineConfig
}

// NewVendorScorer builds a scorer with the given engine configuration.
func NewVendorScorer(cfg config.EngineConfig) *VendorScorer {
	return &VendorScorer{cfg: cfg}
}

// Score returns the vendor sub-score in [0,1] and its flags. A nil vendor
// snapshot scores zero and records an evidence gap instead of failing.
func (s *VendorScorer) Score(v *vendor.Vendor) (float64, []risk.Flag) {
	if v == nil {
		return 0, []risk.Flag{{
			Type:        risk.FlagEvidenceGap,
			Severity:    risk.FlagSeverityMedium,
			Description: "vendor profile unavailable, vendor history not assessed",
			Confidence:  1.0,
		}}
	}

	p := v.Profile
	score := 0.5*(1-p.PaymentReliability) +
		0.5*math.Min(1, float64(p.FraudFlagCount)*s.cfg.FraudFlagIncrement)

	if p.FraudFlagCount == 0 && p.TotalInvoices >= s.cfg.CleanHistoryMinVolume {
		score -= s.cfg.CleanHistoryRiskCredit
	}
	score = clamp01(score)

	var flags []risk.Flag
	if p.FraudFlagCount > 0 {
		severity := risk.FlagSeverityMedium
		if p.FraudFlagCount >= 2 {
			severity = risk.FlagSeverityHigh
		}
		flags = append(flags, risk.Flag{
			Type:        risk.FlagVendorRisk,
			Severity:    severity,
			Description: fmt.Sprintf("vendor %s carries %d active fraud flag(s)", v.Name, p.FraudFlagCount),
			Confidence:  math.Min(1, float64(p.FraudFlagCount)*s.cfg.FraudFlagIncrement),
		})
	}
	if p.PaymentReliability < 0.5 && p.TotalInvoices > 0 {
		flags = append(flags, risk.Flag{
			Type:        risk.FlagVendorRisk,
			Severity:    risk.FlagSeverityMedium,
			Description: fmt.Sprintf("vendor %s has low payment reliability (%.2f)", v.Name, p.PaymentReliability),
			Confidence:  1 - p.PaymentReliability,
		})
	}
	if !v.Active {
		flags = append(flags, risk.Flag{
			Type:        risk.FlagVendorRisk,
			Severity:    risk.FlagSeverityHigh,
			Description: fmt.Sprintf("vendor %s is inactive", v.Name),
			Confidence:  1.0,
		})
	}
	return score, flags
}
