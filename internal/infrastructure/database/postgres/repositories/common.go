// Package repositories implements the domain repository contracts over
// PostgreSQL. Line items and workflow evidence are stored as JSONB; the
// columns the engine filters on are first-class.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/apclear/invoicegate/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func marshalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode row payload")
	}
	return raw, nil
}

func unmarshalJSON(raw []byte, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode row payload")
	}
	return nil
}
