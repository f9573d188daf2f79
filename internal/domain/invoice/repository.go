package invoice

import (
	"context"
	"time"

	"github.com/apclear/invoicegate/pkg/types/common"
)

// Repository persists extracted invoice records.
type Repository interface {
	// Create stores a newly extracted invoice. Creating an id that already
	// exists is a no-op so ingestion retries stay safe.
	Create(ctx context.Context, inv *Invoice) error

	// FindByID returns the invoice or an ErrCodeInvoiceNotFound AppError.
	FindByID(ctx context.Context, id common.ID) (*Invoice, error)

	// UpdateStatus persists a status transition.
	UpdateStatus(ctx context.Context, id common.ID, status Status) error
}

// SignatureStore keeps the content signatures of previously processed
// invoices for duplicate detection. Implementations must treat reads as
// snapshots; the engine records a signature only after a terminal decision.
type SignatureStore interface {
	// Seen reports whether an identical content hash has been recorded.
	Seen(ctx context.Context, hash string) (bool, error)

	// RecentByVendor returns the vendor's signatures with issue dates inside
	// the window, for the fuzzy duplicate check.
	RecentByVendor(ctx context.Context, vendorID common.ID, from, to time.Time) ([]Signature, error)

	// Record stores a signature. Recording the same hash twice is a no-op.
	Record(ctx context.Context, sig Signature) error
}
