package purchaseorder

import (
	"context"

	"github.com/apclear/invoicegate/pkg/types/common"
)

// Repository provides access to purchase orders. The candidate selector
// reads open orders once per run; ApplyMatch results are persisted by the
// calling layer after a decision is recorded.
type Repository interface {
	// FindByID returns the order or an ErrCodeNotFound AppError.
	FindByID(ctx context.Context, id common.ID) (*PurchaseOrder, error)

	// FindMatchableByVendor returns the vendor's orders in open or
	// partially_matched status, newest first. An empty slice is a valid
	// result meaning "no PO found", not an error.
	FindMatchableByVendor(ctx context.Context, vendorID common.ID) ([]*PurchaseOrder, error)

	// Save persists the order's matched amount and status.
	Save(ctx context.Context, po *PurchaseOrder) error
}
