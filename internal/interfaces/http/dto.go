package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/risk"
	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// LineItemRequest is one billed line in an ingestion request.
type LineItemRequest struct {
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// IngestInvoiceRequest carries an extracted invoice into the pipeline. The
// id is optional; omitted ids are generated, which makes curl-driven
// submissions practical while still letting the extraction service supply
// stable ids for idempotent retries.
type IngestInvoiceRequest struct {
	ID                   string            `json:"id"`
	VendorID             string            `json:"vendor_id" binding:"required"`
	VendorName           string            `json:"vendor_name"`
	InvoiceNumber        string            `json:"invoice_number" binding:"required"`
	IssueDate            time.Time         `json:"issue_date" binding:"required"`
	Currency             string            `json:"currency" binding:"omitempty,currency_code"`
	Subtotal             decimal.Decimal   `json:"subtotal"`
	Tax                  decimal.Decimal   `json:"tax"`
	Total                decimal.Decimal   `json:"total"`
	LineItems            []LineItemRequest `json:"line_items" binding:"dive"`
	POReference          string            `json:"po_reference"`
	ExtractionConfidence float64           `json:"extraction_confidence" binding:"gte=0,lte=1"`
}

// ToDomain builds the domain record. Structural validation beyond binding
// tags happens in the domain layer.
func (r *IngestInvoiceRequest) ToDomain(now time.Time) *invoice.Invoice {
	id := common.ID(r.ID)
	if id == "" {
		id = common.NewID()
	}
	items := make([]invoice.LineItem, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		items = append(items, invoice.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.LineTotal,
		})
	}
	return &invoice.Invoice{
		ID:                   id,
		VendorID:             common.ID(r.VendorID),
		VendorName:           r.VendorName,
		InvoiceNumber:        r.InvoiceNumber,
		IssueDate:            r.IssueDate,
		Currency:             r.Currency,
		Subtotal:             r.Subtotal,
		Tax:                  r.Tax,
		Total:                r.Total,
		LineItems:            items,
		POReference:          r.POReference,
		ExtractionConfidence: r.ExtractionConfidence,
		Status:               invoice.StatusExtracted,
		CreatedAt:            now,
	}
}

// DecisionResponse is the outward view of a terminal workflow state.
type DecisionResponse struct {
	WorkflowID     common.ID         `json:"workflow_id"`
	InvoiceID      common.ID         `json:"invoice_id"`
	Stage          workflow.Stage    `json:"stage"`
	Decision       workflow.Decision `json:"decision,omitempty"`
	Rationale      string            `json:"rationale,omitempty"`
	Notes          []string          `json:"notes,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	MatchResult    *match.Result     `json:"match_result,omitempty"`
	RiskAssessment *risk.Assessment  `json:"risk_assessment,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

func newDecisionResponse(st workflow.State) DecisionResponse {
	return DecisionResponse{
		WorkflowID:     st.ID,
		InvoiceID:      st.InvoiceID,
		Stage:          st.Stage,
		Decision:       st.Decision,
		Rationale:      st.Rationale,
		Notes:          st.Notes,
		FailureReason:  st.FailureReason,
		MatchResult:    st.MatchResult,
		RiskAssessment: st.RiskAssessment,
		CompletedAt:    st.CompletedAt,
	}
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
