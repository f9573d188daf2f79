package repositories

import (
	"context"
	"database/sql"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// InvoiceRepo implements invoice.Repository over PostgreSQL.
type InvoiceRepo struct {
	db     queryExecutor
	logger logging.Logger
}

// NewInvoiceRepo builds the repository.
func NewInvoiceRepo(db *sql.DB, logger logging.Logger) *InvoiceRepo {
	return &InvoiceRepo{db: db, logger: logger.Named("invoice_repo")}
}

const invoiceColumns = `id, vendor_id, vendor_name, invoice_number, issue_date, currency,
	subtotal, tax, total, line_items, po_reference, extraction_confidence, status, created_at`

// Create implements invoice.Repository. Conflicting ids are ignored so that
// ingestion retries do not fail.
func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	lineItems, err := marshalJSON(inv.LineItems)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`,
		string(inv.ID), string(inv.VendorID), inv.VendorName, inv.InvoiceNumber,
		inv.IssueDate, inv.Currency, inv.Subtotal, inv.Tax, inv.Total,
		lineItems, inv.POReference, inv.ExtractionConfidence, string(inv.Status), inv.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert invoice")
	}
	return nil
}

// FindByID implements invoice.Repository.
func (r *InvoiceRepo) FindByID(ctx context.Context, id common.ID) (*invoice.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices WHERE id = $1`, string(id))
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeInvoiceNotFound, "invoice %s not found", id)
	}
	return inv, err
}

// UpdateStatus implements invoice.Repository.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id common.ID, status invoice.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $1 WHERE id = $2`, string(status), string(id))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update invoice status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf(errors.ErrCodeInvoiceNotFound, "invoice %s not found", id)
	}
	return nil
}

func scanInvoice(row scanner) (*invoice.Invoice, error) {
	var (
		inv       invoice.Invoice
		id        string
		vendorID  string
		status    string
		lineItems []byte
	)
	err := row.Scan(&id, &vendorID, &inv.VendorName, &inv.InvoiceNumber, &inv.IssueDate,
		&inv.Currency, &inv.Subtotal, &inv.Tax, &inv.Total, &lineItems,
		&inv.POReference, &inv.ExtractionConfidence, &status, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan invoice row")
	}
	if err := unmarshalJSON(lineItems, &inv.LineItems); err != nil {
		return nil, err
	}
	inv.ID = common.ID(id)
	inv.VendorID = common.ID(vendorID)
	inv.Status = invoice.Status(status)
	return &inv, nil
}
