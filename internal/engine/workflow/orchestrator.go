package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/domain/vendor"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
)

// Matcher is the matching stage as the orchestrator sees it.
type Matcher interface {
	Match(ctx context.Context, inv *invoice.Invoice) (*match.Result, error)
}

// RiskAssessor is the risk stage as the orchestrator sees it.
type RiskAssessor interface {
	Assess(ctx context.Context, inv *invoice.Invoice, v *vendor.Vendor) (*risk.Assessment, error)
}

// Orchestrator advances one invoice through the stage sequence and applies
// the evidence-degradation rules: a single failed evidence stage becomes a
// noted gap, both failing ends the run as errored.
type Orchestrator struct {
	matcher  Matcher
	assessor RiskAssessor
	policy   *Policy
	cfg      config.EngineConfig
	logger   logging.Logger
	now      func() time.Time
}

// NewOrchestrator wires the workflow over its two evidence stages.
func NewOrchestrator(matcher Matcher, assessor RiskAssessor, cfg config.EngineConfig, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		matcher:  matcher,
		assessor: assessor,
		policy:   NewPolicy(cfg),
		cfg:      cfg,
		logger:   logger.Named("workflow"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the full pipeline for one invoice and returns the terminal
// state. A non-nil error accompanies only the errored terminal state or a
// context abort; in the abort case the returned partial state is meant to
// be discarded, not persisted.
func (o *Orchestrator) Run(ctx context.Context, inv *invoice.Invoice, v *vendor.Vendor) (State, error) {
	st := NewState(inv, v, o.now())

	// Extraction validation gates everything else.
	if inv.ExtractionConfidence < o.cfg.MinExtractionConfidence {
		err := errors.Newf(errors.ErrCodeIncompleteExtraction,
			"extraction confidence %.2f is below the minimum %.2f",
			inv.ExtractionConfidence, o.cfg.MinExtractionConfidence)
		st = st.toErrored(err.Error(), o.now())
		o.logger.Warn("workflow errored at extraction validation",
			logging.String("invoice_id", string(inv.ID)),
			logging.Float64("confidence", inv.ExtractionConfidence))
		return st, err
	}
	st = st.advance(StageExtractionValidated, o.now())
	if err := ctx.Err(); err != nil {
		return o.abort(st, err)
	}

	// Matching. A failure here is a recoverable evidence gap.
	m, err := o.matcher.Match(ctx, inv)
	if err != nil {
		note := fmt.Sprintf("partial evidence: matching unavailable (%v)", err)
		st = st.withNote(note, o.now())
		o.logger.Warn("matching stage failed, continuing on risk evidence only",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	} else {
		st = st.withMatch(m, o.now())
	}
	st = st.advance(StageMatched, o.now())
	if err := ctx.Err(); err != nil {
		return o.abort(st, err)
	}

	// Risk assessment. Failing after matching also failed leaves nothing
	// to decide on.
	a, err := o.assessor.Assess(ctx, inv, v)
	if err != nil {
		if st.MatchResult == nil {
			fatal := errors.Wrap(err, errors.ErrCodeNoEvidence,
				"matching and risk assessment both failed")
			st = st.toErrored(fatal.Error(), o.now())
			o.logger.Error("workflow errored with no evidence",
				logging.String("invoice_id", string(inv.ID)), logging.Err(err))
			return st, fatal
		}
		note := fmt.Sprintf("partial evidence: risk assessment unavailable (%v)", err)
		st = st.withNote(note, o.now())
		o.logger.Warn("risk stage failed, continuing on match evidence only",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	} else {
		st = st.withAssessment(a, o.now())
	}
	st = st.advance(StageRiskAssessed, o.now())
	if err := ctx.Err(); err != nil {
		return o.abort(st, err)
	}

	decision, rationale := o.policy.Decide(st.MatchResult, st.RiskAssessment)
	st = st.toDecided(decision, rationale, o.now())

	o.logger.Info("workflow decided",
		logging.String("invoice_id", string(inv.ID)),
		logging.String("workflow_id", string(st.ID)),
		logging.String("decision", string(decision)),
		logging.String("rationale", rationale),
		logging.Int("notes", len(st.Notes)))
	return st, nil
}

// Replay recomputes the decision of an already-decided state from the
// evidence it carries. The policy is pure, so the decision and rationale
// come back identical; callers use it to verify decision stability.
func (o *Orchestrator) Replay(st State) (Decision, string, error) {
	if st.Stage != StageDecided {
		return "", "", errors.Newf(errors.ErrCodeWorkflowTerminal,
			"workflow %s is %s, only decided workflows can be replayed", st.ID, st.Stage)
	}
	decision, rationale := o.policy.Decide(st.MatchResult, st.RiskAssessment)
	return decision, rationale, nil
}

func (o *Orchestrator) abort(st State, cause error) (State, error) {
	return st, errors.Wrap(cause, errors.ErrCodeTimeout, "workflow aborted between stages")
}
