// Package purchaseorder defines the purchase order aggregate and the
// matched-amount accounting the engine relies on.
package purchaseorder

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// Status is the lifecycle state of a purchase order.
//
// Legal transitions: open → partially_matched → closed, and → cancelled from
// any non-closed state. Everything else is rejected.
type Status string

const (
	StatusOpen             Status = "open"
	StatusPartiallyMatched Status = "partially_matched"
	StatusClosed           Status = "closed"
	StatusCancelled        Status = "cancelled"
)

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusCancelled:
		return s != StatusClosed && s != StatusCancelled
	case StatusPartiallyMatched:
		return s == StatusOpen || s == StatusPartiallyMatched
	case StatusClosed:
		return s == StatusOpen || s == StatusPartiallyMatched
	default:
		return false
	}
}

// Matchable reports whether invoices may still match against this status.
func (s Status) Matchable() bool {
	return s == StatusOpen || s == StatusPartiallyMatched
}

// LineItem is one ordered line on a purchase order.
type LineItem struct {
	Description      string          `json:"description"`
	QuantityOrdered  decimal.Decimal `json:"quantity_ordered"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	QuantityMatched  decimal.Decimal `json:"quantity_matched"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
}

// PurchaseOrder is the buyer-side commitment invoices reconcile against.
type PurchaseOrder struct {
	ID               common.ID       `json:"id"`
	VendorID         common.ID       `json:"vendor_id"`
	VendorName       string          `json:"vendor_name"`
	Status           Status          `json:"status"`
	LineItems        []LineItem      `json:"line_items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	MatchedAmount    decimal.Decimal `json:"matched_amount"`
	CreatedAt        time.Time       `json:"created_at"`
	ExpectedDelivery time.Time       `json:"expected_delivery"`
}

// RemainingAmount is the unmatched portion of the order total.
func (po *PurchaseOrder) RemainingAmount() decimal.Decimal {
	return po.TotalAmount.Sub(po.MatchedAmount)
}

// ApplyMatch records amount as matched against the order and advances the
// status. MatchedAmount is monotonically non-decreasing and never exceeds
// TotalAmount.
func (po *PurchaseOrder) ApplyMatch(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return errors.InvalidParam("match amount must be positive")
	}
	if !po.Status.Matchable() {
		return errors.Newf(errors.ErrCodeConflict, "purchase order %s is %s and cannot accept matches", po.ID, po.Status)
	}
	next := po.MatchedAmount.Add(amount)
	if next.GreaterThan(po.TotalAmount) {
		return errors.Newf(errors.ErrCodePOExhausted,
			"match of %s would exceed order total %s (already matched %s)",
			amount.StringFixed(2), po.TotalAmount.StringFixed(2), po.MatchedAmount.StringFixed(2))
	}

	po.MatchedAmount = next
	if po.MatchedAmount.Equal(po.TotalAmount) {
		po.Status = StatusClosed
	} else {
		po.Status = StatusPartiallyMatched
	}
	return nil
}

// Cancel moves the order to cancelled. Closed orders cannot be cancelled.
func (po *PurchaseOrder) Cancel() error {
	if !po.Status.CanTransition(StatusCancelled) {
		return errors.Newf(errors.ErrCodeConflict, "purchase order %s cannot be cancelled from %s", po.ID, po.Status)
	}
	po.Status = StatusCancelled
	return nil
}
