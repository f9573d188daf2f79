package workflow

import (
	"fmt"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/risk"
)

// Policy renders the final decision from the match result and risk
// assessment. It is a pure function of its inputs: the same evidence always
// yields the same decision and rationale, which is what makes replaying a
// decided workflow reproducible.
//
// Rules apply in priority order, risk first:
//
//  1. critical risk level, or two or more critical flags  -> rejected
//  2. exactly one critical flag                           -> escalated
//  3. high risk level, or two or more high flags          -> requires_investigation
//  4. no match, critical discrepancy, or score below the
//     partial threshold                                   -> requires_review
//  5. match score at or above the exact threshold,
//     low risk                                            -> auto_approved
//  6. everything else                                     -> requires_review
//
// The reasoning collaborator contributes rationale detail only. Its verdict
// can lift RequiresApproval on the match result, but never the decision:
// with or without the collaborator, the same evidence decides the same way.
type Policy struct {
	cfg config.EngineConfig
}

// NewPolicy builds a policy with the given engine configuration.
func NewPolicy(cfg config.EngineConfig) *Policy {
	return &Policy{cfg: cfg}
}

// Decide returns the decision and a rationale naming the rule that fired
// and the evidence it fired on. Either input may be nil when the
// corresponding stage produced no evidence.
func (p *Policy) Decide(m *match.Result, a *risk.Assessment) (Decision, string) {
	if a != nil {
		if a.Level == risk.LevelCritical || a.CriticalFlagCount >= 2 {
			return DecisionRejected, fmt.Sprintf(
				"critical_risk: risk level %s at score %.2f with %d critical flag(s)",
				a.Level, a.Score, a.CriticalFlagCount)
		}
		if a.CriticalFlagCount == 1 {
			return DecisionEscalated, fmt.Sprintf(
				"critical_flag: %s", firstFlag(a.Flags, risk.FlagSeverityCritical))
		}
		if a.Level == risk.LevelHigh || a.HighFlagCount >= 2 {
			return DecisionRequiresInvestigation, fmt.Sprintf(
				"high_risk: risk level %s at score %.2f with %d high flag(s)",
				a.Level, a.Score, a.HighFlagCount)
		}
	}

	if !m.Matched() {
		return DecisionRequiresReview, "unmatched: no purchase order matched the invoice"
	}
	if m.HasCriticalDiscrepancy() {
		return DecisionRequiresReview, fmt.Sprintf(
			"critical_discrepancy: %s", firstDiscrepancy(m.Discrepancies, match.SeverityCritical))
	}
	if m.Score < p.cfg.PartialMatchThreshold {
		return DecisionRequiresReview, fmt.Sprintf(
			"weak_match: match score %.2f is below the partial threshold %.2f",
			m.Score, p.cfg.PartialMatchThreshold)
	}

	if m.Score >= p.cfg.ExactMatchThreshold && a != nil && a.Level == risk.LevelLow {
		rationale := fmt.Sprintf(
			"clean_match: match score %.2f with low risk score %.2f", m.Score, a.Score)
		if m.ReasonerNote != "" {
			rationale += "; reasoner: " + m.ReasonerNote
		}
		return DecisionAutoApproved, rationale
	}

	return DecisionRequiresReview, fmt.Sprintf(
		"default_review: match score %.2f, risk level %s", m.Score, levelOrUnknown(a))
}

func firstFlag(flags []risk.Flag, severity risk.FlagSeverity) string {
	for _, f := range flags {
		if f.Severity == severity {
			return f.Description
		}
	}
	return "unidentified flag"
}

func firstDiscrepancy(discs []match.Discrepancy, severity match.Severity) string {
	for _, d := range discs {
		if d.Severity == severity {
			return d.Description
		}
	}
	return "unidentified discrepancy"
}

func levelOrUnknown(a *risk.Assessment) string {
	if a == nil {
		return "unknown"
	}
	return string(a.Level)
}
