package storage

import (
	"context"
	"database/sql"
)

// DBTX is the subset of *[sql.DB]/*[sql.Tx] operations the storage engine
// needs. Every query-bearing type in this package holds one of these
// instead of a concrete *sql.DB, so the same code runs against a plain
// connection or an open transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
