// Package workflow drives an invoice through the decision pipeline:
// extraction validation, matching, risk assessment, and the final decision.
// The workflow state is an immutable snapshot; every transition produces a
// new value and the previous snapshots stay valid for auditing.
package workflow

import (
	"time"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/domain/vendor"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// Stage is the workflow position. Decided and errored are terminal.
type Stage string

const (
	StageStarted             Stage = "started"
	StageExtractionValidated Stage = "extraction_validated"
	StageMatched             Stage = "matched"
	StageRiskAssessed        Stage = "risk_assessed"
	StageDecided             Stage = "decided"
	StageErrored             Stage = "errored"
)

// Terminal reports whether the stage accepts no further transitions.
func (s Stage) Terminal() bool {
	return s == StageDecided || s == StageErrored
}

// Decision is the payment outcome rendered by the decision policy.
type Decision string

const (
	DecisionAutoApproved          Decision = "auto_approved"
	DecisionRequiresReview        Decision = "requires_review"
	DecisionRequiresInvestigation Decision = "requires_investigation"
	DecisionEscalated             Decision = "escalated"
	DecisionRejected              Decision = "rejected"
)

// State is one snapshot of a workflow run. States are values: transition
// helpers return modified copies and never touch the receiver, so a caller
// holding an earlier snapshot always sees it unchanged.
type State struct {
	ID        common.ID `json:"id"`
	InvoiceID common.ID `json:"invoice_id"`
	Stage     Stage     `json:"stage"`

	Invoice *invoice.Invoice `json:"invoice"`
	Vendor  *vendor.Vendor   `json:"vendor,omitempty"`

	MatchResult    *match.Result    `json:"match_result,omitempty"`
	RiskAssessment *risk.Assessment `json:"risk_assessment,omitempty"`

	Decision  Decision `json:"decision,omitempty"`
	Rationale string   `json:"rationale,omitempty"`

	// Notes records non-fatal evidence gaps hit along the way.
	Notes []string `json:"notes,omitempty"`

	// FailureReason is set only in the errored stage.
	FailureReason string `json:"failure_reason,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewState starts a workflow run for the invoice.
func NewState(inv *invoice.Invoice, v *vendor.Vendor, now time.Time) State {
	return State{
		ID:        common.NewID(),
		InvoiceID: inv.ID,
		Stage:     StageStarted,
		Invoice:   inv,
		Vendor:    v,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the run has finished, successfully or not.
func (s State) Terminal() bool {
	return s.Stage.Terminal()
}

// EnsureActive returns an ErrCodeWorkflowTerminal error when the run has
// already finished. Callers use it to guard against double processing.
func (s State) EnsureActive() error {
	if s.Terminal() {
		return errors.Newf(errors.ErrCodeWorkflowTerminal,
			"workflow %s for invoice %s already reached %s", s.ID, s.InvoiceID, s.Stage)
	}
	return nil
}

// clone deep-copies the mutable slice so snapshots never alias.
func (s State) clone() State {
	out := s
	out.Notes = append([]string(nil), s.Notes...)
	return out
}

func (s State) advance(stage Stage, now time.Time) State {
	out := s.clone()
	out.Stage = stage
	out.UpdatedAt = now
	return out
}

func (s State) withMatch(m *match.Result, now time.Time) State {
	out := s.clone()
	out.MatchResult = m
	out.UpdatedAt = now
	return out
}

func (s State) withAssessment(a *risk.Assessment, now time.Time) State {
	out := s.clone()
	out.RiskAssessment = a
	out.UpdatedAt = now
	return out
}

func (s State) withNote(note string, now time.Time) State {
	out := s.clone()
	out.Notes = append(out.Notes, note)
	out.UpdatedAt = now
	return out
}

func (s State) toDecided(d Decision, rationale string, now time.Time) State {
	out := s.clone()
	out.Stage = StageDecided
	out.Decision = d
	out.Rationale = rationale
	out.UpdatedAt = now
	out.CompletedAt = &now
	return out
}

func (s State) toErrored(reason string, now time.Time) State {
	out := s.clone()
	out.Stage = StageErrored
	out.FailureReason = reason
	out.UpdatedAt = now
	out.CompletedAt = &now
	return out
}
