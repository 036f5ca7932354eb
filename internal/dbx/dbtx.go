// Package dbx provides the small database/sql abstractions the durable
// storage scope is written against: DBTX, satisfied by both *sql.DB and
// *sql.Tx, and WithTx for read-modify-write sequences.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by storage code.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    var v []byte
//	    if err := tx.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", k).Scan(&v); err != nil {
//	        return err
//	    }
//	    _, err := tx.ExecContext(ctx, "UPDATE kv SET value = ? WHERE key = ?", mutate(v), k)
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
