package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
	"github.com/apclear/invoicegate/pkg/types/common"
)

// PriceHistoryRepo maintains per-vendor average unit prices keyed by line
// description. It serves the price anomaly detector and accumulates new
// observations after each terminal decision.
type PriceHistoryRepo struct {
	db     queryExecutor
	logger logging.Logger
}

// NewPriceHistoryRepo builds the repository.
func NewPriceHistoryRepo(db *sql.DB, logger logging.Logger) *PriceHistoryRepo {
	return &PriceHistoryRepo{db: db, logger: logger.Named("price_history_repo")}
}

// AverageUnitPrice implements riskengine.PriceHistoryProvider.
func (r *PriceHistoryRepo) AverageUnitPrice(ctx context.Context, vendorID common.ID, description string) (decimal.Decimal, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT avg_unit_price
		FROM price_history
		WHERE vendor_id = $1 AND description = $2`, string(vendorID), description)

	var avg decimal.Decimal
	err := row.Scan(&avg)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read price history")
	}
	return avg, true, nil
}

// RecordInvoice folds the invoice's unit prices into the running averages.
// Called after a terminal decision so anomalous invoices still awaiting
// review do not poison the baseline of in-flight workflows mid-run.
func (r *PriceHistoryRepo) RecordInvoice(ctx context.Context, inv *invoice.Invoice) error {
	now := time.Now().UTC()
	for _, line := range inv.LineItems {
		if line.Description == "" || line.UnitPrice.IsNegative() {
			continue
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO price_history (vendor_id, description, avg_unit_price, sample_count, updated_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (vendor_id, description) DO UPDATE
			SET avg_unit_price = (price_history.avg_unit_price * price_history.sample_count + EXCLUDED.avg_unit_price)
			                     / (price_history.sample_count + 1),
			    sample_count   = price_history.sample_count + 1,
			    updated_at     = EXCLUDED.updated_at`,
			string(inv.VendorID), line.Description, line.UnitPrice, now)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record price observation")
		}
	}
	return nil
}
