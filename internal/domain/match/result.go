// Package match defines the match result value objects produced by the
// matching stage: classification, per-dimension scores, and discrepancies.
// A MatchResult is created once per match attempt and is immutable after
// creation; it is persisted as an audit record.
package match

import (
	"time"

	"github.com/apclear/invoicegate/pkg/types/common"
)

// Type classifies how well an invoice reconciles against a purchase order.
type Type string

const (
	TypeExact   Type = "exact"
	TypeFuzzy   Type = "fuzzy"
	TypePartial Type = "partial"
	TypeNone    Type = "none"
)

// DiscrepancyType names the dimension on which invoice and order disagree.
type DiscrepancyType string

const (
	DiscrepancyVendor   DiscrepancyType = "vendor_mismatch"
	DiscrepancyAmount   DiscrepancyType = "amount_mismatch"
	DiscrepancyLineItem DiscrepancyType = "line_item_mismatch"
	DiscrepancyDate     DiscrepancyType = "date_mismatch"
)

// Severity grades a discrepancy.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Discrepancy is a single field-level mismatch between invoice and order.
// Pure value object.
type Discrepancy struct {
	Type         DiscrepancyType `json:"type"`
	Severity     Severity        `json:"severity"`
	Description  string          `json:"description"`
	InvoiceValue string          `json:"invoice_value"`
	POValue      string          `json:"po_value"`
}

// DimensionScores are the four sub-scores of the match scorer, each in [0,1].
type DimensionScores struct {
	Vendor    float64 `json:"vendor"`
	Amount    float64 `json:"amount"`
	Date      float64 `json:"date"`
	LineItems float64 `json:"line_items"`
}

// Result is the outcome of matching one invoice against its best candidate
// purchase order. PurchaseOrderID is nil when the match type is none, even
// if candidates were scored.
type Result struct {
	ID              common.ID       `json:"id"`
	InvoiceID       common.ID       `json:"invoice_id"`
	PurchaseOrderID *common.ID      `json:"purchase_order_id,omitempty"`
	Type            Type            `json:"type"`
	Score           float64         `json:"score"`
	Dimensions      DimensionScores `json:"dimensions"`
	Discrepancies   []Discrepancy   `json:"discrepancies"`

	// RequiresApproval is true when any discrepancy is critical or the
	// overall score falls below the approval threshold.
	RequiresApproval bool `json:"requires_approval"`

	// ReasonerNote carries the optional reasoning collaborator's
	// justification when it was consulted. Empty otherwise.
	ReasonerNote string `json:"reasoner_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Matched reports whether a purchase order was recorded.
func (r *Result) Matched() bool {
	return r != nil && r.Type != TypeNone && r.PurchaseOrderID != nil
}

// HasCriticalDiscrepancy reports whether any discrepancy is critical.
func (r *Result) HasCriticalDiscrepancy() bool {
	if r == nil {
		return false
	}
	for _, d := range r.Discrepancies {
		if d.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// CountBySeverity returns the number of discrepancies at the given severity.
func (r *Result) CountBySeverity(s Severity) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, d := range r.Discrepancies {
		if d.Severity == s {
			n++
		}
	}
	return n
}
