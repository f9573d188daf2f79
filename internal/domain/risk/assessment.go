// Package risk defines the risk assessment value objects produced by the
// risk engine: flags, sub-scores, levels, and the aggregated assessment.
// A RiskAssessment is immutable once created.
package risk

import (
	"time"

	"github.com/apclear/invoicegate/pkg/types/common"
)

// Level is the aggregated risk classification.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// FlagType names the signal that raised a flag.
type FlagType string

const (
	FlagDuplicateInvoice FlagType = "duplicate_invoice"
	FlagVendorRisk       FlagType = "vendor_risk"
	FlagPriceAnomaly     FlagType = "price_anomaly"
	FlagAmountAnomaly    FlagType = "amount_anomaly"
	FlagPatternAnomaly   FlagType = "pattern_anomaly"

	// FlagEvidenceGap notes that one evidence source (matching or a risk
	// sub-check) was unavailable and the decision proceeded without it.
	FlagEvidenceGap FlagType = "evidence_gap"
)

// FlagSeverity grades a flag.
type FlagSeverity string

const (
	FlagSeverityLow      FlagSeverity = "low"
	FlagSeverityMedium   FlagSeverity = "medium"
	FlagSeverityHigh     FlagSeverity = "high"
	FlagSeverityCritical FlagSeverity = "critical"
)

// Flag is a discrete, typed signal of suspicious or anomalous behaviour.
type Flag struct {
	Type        FlagType        `json:"type"`
	Severity    FlagSeverity    `json:"severity"`
	Description string          `json:"description"`
	Confidence  float64         `json:"confidence"`
	Details     common.Metadata `json:"details,omitempty"`
}

// SubScores are the named components feeding the aggregate, each in [0,1].
type SubScores struct {
	Duplicate float64 `json:"duplicate"`
	Vendor    float64 `json:"vendor"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Pattern   float64 `json:"pattern"`
}

// Action is the recommended handling derived from the risk level.
type Action string

const (
	ActionApprove     Action = "approve"
	ActionReview      Action = "review"
	ActionInvestigate Action = "investigate"
	ActionReject      Action = "reject"
)

// ActionForLevel maps a risk level to its recommended action.
func ActionForLevel(l Level) Action {
	switch l {
	case LevelCritical:
		return ActionReject
	case LevelHigh:
		return ActionInvestigate
	case LevelMedium:
		return ActionReview
	default:
		return ActionApprove
	}
}

// Assessment is the aggregated risk verdict for one invoice.
type Assessment struct {
	ID        common.ID `json:"id"`
	InvoiceID common.ID `json:"invoice_id"`
	VendorID  common.ID `json:"vendor_id"`

	Level     Level     `json:"level"`
	Score     float64   `json:"score"`
	SubScores SubScores `json:"sub_scores"`
	Flags     []Flag    `json:"flags"`

	CriticalFlagCount int `json:"critical_flag_count"`
	HighFlagCount     int `json:"high_flag_count"`

	RecommendedAction    Action `json:"recommended_action"`
	RequiresManualReview bool   `json:"requires_manual_review"`

	CreatedAt time.Time `json:"created_at"`
}

// CountFlags tallies flags at the given severity.
func CountFlags(flags []Flag, severity FlagSeverity) int {
	n := 0
	for _, f := range flags {
		if f.Severity == severity {
			n++
		}
	}
	return n
}
