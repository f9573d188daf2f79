package repositories

import (
	"context"
	"database/sql"

	"github.com/apclear/invoicegate/internal/domain/purchaseorder"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// PurchaseOrderRepo implements purchaseorder.Repository over PostgreSQL.
type PurchaseOrderRepo struct {
	db     queryExecutor
	logger logging.Logger
}

// NewPurchaseOrderRepo builds the repository.
func NewPurchaseOrderRepo(db *sql.DB, logger logging.Logger) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{db: db, logger: logger.Named("po_repo")}
}

const poColumns = `id, vendor_id, vendor_name, status, line_items,
	total_amount, matched_amount, created_at, expected_delivery`

// FindByID implements purchaseorder.Repository.
func (r *PurchaseOrderRepo) FindByID(ctx context.Context, id common.ID) (*purchaseorder.PurchaseOrder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+poColumns+`
		FROM purchase_orders WHERE id = $1`, string(id))
	po, err := scanPurchaseOrder(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeNotFound, "purchase order %s not found", id)
	}
	return po, err
}

// FindMatchableByVendor implements purchaseorder.Repository.
func (r *PurchaseOrderRepo) FindMatchableByVendor(ctx context.Context, vendorID common.ID) ([]*purchaseorder.PurchaseOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+poColumns+`
		FROM purchase_orders
		WHERE vendor_id = $1 AND status IN ('open', 'partially_matched')
		ORDER BY created_at DESC`, string(vendorID))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query matchable purchase orders")
	}
	defer rows.Close()

	var out []*purchaseorder.PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate purchase order rows")
	}
	return out, nil
}

// Save implements purchaseorder.Repository. Only the match accounting moves
// after creation; line items are written once by order ingestion.
func (r *PurchaseOrderRepo) Save(ctx context.Context, po *purchaseorder.PurchaseOrder) error {
	lineItems, err := marshalJSON(po.LineItems)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $1, matched_amount = $2, line_items = $3
		WHERE id = $4`,
		string(po.Status), po.MatchedAmount, lineItems, string(po.ID))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save purchase order")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf(errors.ErrCodeNotFound, "purchase order %s not found", po.ID)
	}
	return nil
}

func scanPurchaseOrder(row scanner) (*purchaseorder.PurchaseOrder, error) {
	var (
		po        purchaseorder.PurchaseOrder
		id        string
		vendorID  string
		status    string
		lineItems []byte
	)
	err := row.Scan(&id, &vendorID, &po.VendorName, &status, &lineItems,
		&po.TotalAmount, &po.MatchedAmount, &po.CreatedAt, &po.ExpectedDelivery)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan purchase order row")
	}
	if err := unmarshalJSON(lineItems, &po.LineItems); err != nil {
		return nil, err
	}
	po.ID = common.ID(id)
	po.VendorID = common.ID(vendorID)
	po.Status = purchaseorder.Status(status)
	return &po, nil
}
