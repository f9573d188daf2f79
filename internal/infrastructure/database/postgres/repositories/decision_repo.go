package repositories

import (
	"context"
	"database/sql"

	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// DecisionRepo persists terminal workflow states as the decision audit
// trail. One row per workflow run; the evidence travels as JSONB so the full
// snapshot survives schema-free.
type DecisionRepo struct {
	db     queryExecutor
	logger logging.Logger
}

// NewDecisionRepo builds the repository.
func NewDecisionRepo(db *sql.DB, logger logging.Logger) *DecisionRepo {
	return &DecisionRepo{db: db, logger: logger.Named("decision_repo")}
}

// Save stores a terminal workflow state. Saving the same workflow id twice
// keeps the first row; decisions are immutable once recorded.
func (r *DecisionRepo) Save(ctx context.Context, st workflow.State) error {
	if !st.Terminal() {
		return errors.InvalidParam("only terminal workflow states are recorded")
	}

	matchJSON, err := marshalJSON(st.MatchResult)
	if err != nil {
		return err
	}
	riskJSON, err := marshalJSON(st.RiskAssessment)
	if err != nil {
		return err
	}
	notesJSON, err := marshalJSON(st.Notes)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO decisions (workflow_id, invoice_id, stage, decision, rationale,
			match_result, risk_assessment, notes, failure_reason, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (workflow_id) DO NOTHING`,
		string(st.ID), string(st.InvoiceID), string(st.Stage), string(st.Decision),
		st.Rationale, matchJSON, riskJSON, notesJSON, st.FailureReason,
		st.StartedAt, st.CompletedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert decision record")
	}
	return nil
}

// FindByInvoice returns the latest terminal state recorded for the invoice,
// or nil when the invoice has never reached a terminal stage.
func (r *DecisionRepo) FindByInvoice(ctx context.Context, invoiceID common.ID) (*workflow.State, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT workflow_id, invoice_id, stage, decision, rationale,
		       match_result, risk_assessment, notes, failure_reason, started_at, completed_at
		FROM decisions
		WHERE invoice_id = $1
		ORDER BY completed_at DESC
		LIMIT 1`, string(invoiceID))

	var (
		st            workflow.State
		workflowID    string
		invID         string
		stage         string
		decision      string
		matchJSON     []byte
		riskJSON      []byte
		notesJSON     []byte
		failureReason sql.NullString
	)
	err := row.Scan(&workflowID, &invID, &stage, &decision, &st.Rationale,
		&matchJSON, &riskJSON, &notesJSON, &failureReason, &st.StartedAt, &st.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan decision row")
	}

	if err := unmarshalJSON(matchJSON, &st.MatchResult); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(riskJSON, &st.RiskAssessment); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(notesJSON, &st.Notes); err != nil {
		return nil, err
	}
	st.ID = common.ID(workflowID)
	st.InvoiceID = common.ID(invID)
	st.Stage = workflow.Stage(stage)
	st.Decision = workflow.Decision(decision)
	st.FailureReason = failureReason.String
	if st.CompletedAt != nil {
		st.UpdatedAt = *st.CompletedAt
	}
	return &st, nil
}
