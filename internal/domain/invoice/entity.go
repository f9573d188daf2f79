// Package invoice defines the extracted invoice record, its content
// signature used for duplicate detection, and the repository contracts the
// engine consumes.
package invoice

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// Status tracks the invoice through the decision pipeline. The record itself
// is immutable once extracted; only the status moves.
type Status string

const (
	StatusExtracted  Status = "extracted"
	StatusProcessing Status = "processing"
	StatusDecided    Status = "decided"
	StatusErrored    Status = "errored"
)

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Invoice is the structured record produced by the upstream extraction
// service. Subtotal + Tax ≈ Total is expected but not enforced here; a
// violation surfaces as an amount discrepancy downstream, never as an error.
type Invoice struct {
	ID            common.ID       `json:"id"`
	VendorID      common.ID       `json:"vendor_id"`
	VendorName    string          `json:"vendor_name"`
	InvoiceNumber string          `json:"invoice_number"`
	IssueDate     time.Time       `json:"issue_date"`
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	LineItems     []LineItem      `json:"line_items"`

	// POReference is the vendor-supplied purchase order number, when the
	// document carried one. Optional.
	POReference string `json:"po_reference,omitempty"`

	// ExtractionConfidence in [0,1] is reported by the extraction service.
	ExtractionConfidence float64 `json:"extraction_confidence"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// totalsEpsilon tolerates rounding drift between extracted subtotal, tax and
// total before the mismatch is worth a discrepancy.
var totalsEpsilon = decimal.NewFromFloat(0.01)

// TotalsConsistent reports whether subtotal + tax equals the declared total
// within a small epsilon.
func (inv *Invoice) TotalsConsistent() bool {
	return inv.Subtotal.Add(inv.Tax).Sub(inv.Total).Abs().LessThanOrEqual(totalsEpsilon)
}

// Validate checks the structural invariants of an extracted record.
func (inv *Invoice) Validate() error {
	if inv.ID == "" {
		return errors.InvalidParam("invoice id must not be empty")
	}
	if inv.VendorID == "" {
		return errors.InvalidParam("invoice vendor id must not be empty")
	}
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		return errors.InvalidParam("invoice number must not be empty")
	}
	if inv.IssueDate.IsZero() {
		return errors.InvalidParam("invoice issue date must not be zero")
	}
	if inv.Total.IsNegative() {
		return errors.InvalidParam("invoice total must not be negative")
	}
	if inv.ExtractionConfidence < 0 || inv.ExtractionConfidence > 1 {
		return errors.InvalidParam("extraction confidence must be in [0,1]")
	}
	return nil
}

// Signature is the content identity of a processed invoice, kept by the
// signature store for duplicate detection.
type Signature struct {
	Hash          string          `json:"hash"`
	InvoiceID     common.ID       `json:"invoice_id"`
	VendorID      common.ID       `json:"vendor_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	IssueDate     time.Time       `json:"issue_date"`
}

// ComputeSignature builds the invoice's content signature. The hash covers
// vendor id, invoice number, total and issue date, so an exact resubmission
// always collides regardless of document formatting.
func (inv *Invoice) ComputeSignature() Signature {
	payload := fmt.Sprintf("%s|%s|%s|%s",
		inv.VendorID,
		strings.ToUpper(strings.TrimSpace(inv.InvoiceNumber)),
		inv.Total.StringFixed(2),
		inv.IssueDate.UTC().Format("2006-01-02"),
	)
	sum := sha256.Sum256([]byte(payload))
	return Signature{
		Hash:          hex.EncodeToString(sum[:]),
		InvoiceID:     inv.ID,
		VendorID:      inv.VendorID,
		InvoiceNumber: inv.InvoiceNumber,
		Total:         inv.Total,
		IssueDate:     inv.IssueDate,
	}
}
