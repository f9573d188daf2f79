// Package reasoning defines the optional reasoning-collaborator capability
// consulted when a match score lands in the ambiguous band. The collaborator
// is best-effort: it is injected at construction time, callable with a
// bounded timeout, and never required for correctness. The algorithmic
// result stays authoritative whenever it is unavailable.
package reasoning

import (
	"context"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/domain/match"
	"github.com/apclear/invoicegate/internal/domain/purchaseorder"
)

// Verdict is the collaborator's approve-vs-review call.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReview  Verdict = "review"
)

// Request carries the evidence the collaborator reviews.
type Request struct {
	Invoice       *invoice.Invoice
	Order         *purchaseorder.PurchaseOrder
	Score         float64
	Dimensions    match.DimensionScores
	Discrepancies []match.Discrepancy
}

// Opinion is the collaborator's answer with a free-text justification.
type Opinion struct {
	Verdict       Verdict
	Justification string
}

// Reasoner is the capability interface. Implementations must respect ctx
// deadlines; a nil Opinion with a nil error means "no opinion available".
type Reasoner interface {
	Review(ctx context.Context, req Request) (*Opinion, error)
}

// Noop is the fallback Reasoner wired when the collaborator is disabled.
// It never offers an opinion.
type Noop struct{}

// Review implements Reasoner.
func (Noop) Review(context.Context, Request) (*Opinion, error) {
	return nil, nil
}
