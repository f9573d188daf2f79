package repositories

import (
	"context"
	"database/sql"

	"github.com/apclear/invoicegate/internal/domain/vendor"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// VendorRepo implements vendor.Repository over PostgreSQL.
type VendorRepo struct {
	db     queryExecutor
	logger logging.Logger
}

// NewVendorRepo builds the repository.
func NewVendorRepo(db *sql.DB, logger logging.Logger) *VendorRepo {
	return &VendorRepo{db: db, logger: logger.Named("vendor_repo")}
}

// FindByID implements vendor.Repository.
func (r *VendorRepo) FindByID(ctx context.Context, id common.ID) (*vendor.Vendor, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, normalized_name, fraud_flag_count, payment_reliability,
		       avg_invoice_amount, total_invoices, active, created_at, updated_at
		FROM vendors WHERE id = $1`, string(id))

	var (
		v  vendor.Vendor
		vi string
	)
	err := row.Scan(&vi, &v.Name, &v.NormalizedName,
		&v.Profile.FraudFlagCount, &v.Profile.PaymentReliability,
		&v.Profile.AvgInvoiceAmount, &v.Profile.TotalInvoices,
		&v.Active, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeVendorNotFound, "vendor %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan vendor row")
	}
	v.ID = common.ID(vi)
	return &v, nil
}
