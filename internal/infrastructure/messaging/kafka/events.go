// Package kafka publishes decision events and consumes extracted invoice
// submissions. Every message is an EventEnvelope with a typed JSON payload,
// keyed by invoice id so one invoice's events stay ordered.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/pkg/types/common"
)

const (
	// TopicInvoicesReceived carries extracted invoices awaiting a decision.
	TopicInvoicesReceived = "invoicegate.invoices.received"

	// TopicDecisions carries rendered decisions for downstream payment
	// processing and review queues.
	TopicDecisions = "invoicegate.decisions"
)

const (
	EventTypeInvoiceReceived  = "invoice.received"
	EventTypeDecisionRendered = "decision.rendered"
	EventTypeWorkflowErrored  = "workflow.errored"
)

// EventEnvelope is the wire frame of every message.
type EventEnvelope struct {
	ID         common.ID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// InvoiceReceivedPayload is the payload of invoice.received events.
type InvoiceReceivedPayload struct {
	Invoice *invoice.Invoice `json:"invoice"`
}

// DecisionPayload is the payload of decision.rendered and workflow.errored
// events: the terminal workflow snapshot minus the bulky input records.
type DecisionPayload struct {
	WorkflowID    common.ID         `json:"workflow_id"`
	InvoiceID     common.ID         `json:"invoice_id"`
	Stage         workflow.Stage    `json:"stage"`
	Decision      workflow.Decision `json:"decision,omitempty"`
	Rationale     string            `json:"rationale,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Notes         []string          `json:"notes,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// NewDecisionEnvelope frames a terminal workflow state as an event.
func NewDecisionEnvelope(st workflow.State) (EventEnvelope, error) {
	eventType := EventTypeDecisionRendered
	if st.Stage == workflow.StageErrored {
		eventType = EventTypeWorkflowErrored
	}
	payload, err := json.Marshal(DecisionPayload{
		WorkflowID:    st.ID,
		InvoiceID:     st.InvoiceID,
		Stage:         st.Stage,
		Decision:      st.Decision,
		Rationale:     st.Rationale,
		FailureReason: st.FailureReason,
		Notes:         st.Notes,
		CompletedAt:   st.CompletedAt,
	})
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:         common.NewID(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}
