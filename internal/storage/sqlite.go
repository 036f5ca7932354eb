package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/digitalmira/internal/common"
	"github.com/dmitrijs2005/digitalmira/internal/dbx"
	"github.com/dmitrijs2005/digitalmira/internal/storage/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLiteScope is the durable Scope.
type SQLiteScope struct {
	db *sql.DB
}

func NewSQLiteScope(db *sql.DB) *SQLiteScope {
	return &SQLiteScope{db: db}
}

// RunMigrations brings the kv schema up to date.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// OpenDurable opens (creating if needed) the database file at path and
// migrates it. The caller owns the returned *sql.DB.
func OpenDurable(ctx context.Context, path string) (*SQLiteScope, *sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w: %w", path, common.ErrStorageUnavailable, err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate %s: %w: %w", path, common.ErrStorageUnavailable, err)
	}

	return NewSQLiteScope(db), db, nil
}

func (s *SQLiteScope) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := get(ctx, s.db, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get value[%s]: %w: %w", key, common.ErrStorageUnavailable, err)
	}
	return v, nil
}

func (s *SQLiteScope) Set(ctx context.Context, key string, value []byte) error {
	if err := set(ctx, s.db, key, value); err != nil {
		return fmt.Errorf("failed to set value[%s]: %w: %w", key, common.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteScope) Delete(ctx context.Context, key string) error {
	if err := del(ctx, s.db, key); err != nil {
		return fmt.Errorf("failed to delete value[%s]: %w: %w", key, common.ErrStorageUnavailable, err)
	}
	return nil
}

// Update runs fn inside a transaction. The write lock is taken before the
// read so concurrent updaters in other processes serialize on busy_timeout
// instead of overwriting each other.
func (s *SQLiteScope) Update(ctx context.Context, key string, fn UpdateFunc) error {
	var fnErr error

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `UPDATE kv SET value = value WHERE key = ?`, key); err != nil {
			return err
		}

		current, err := get(ctx, tx, key)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}

		if next == nil {
			return del(ctx, tx, key)
		}
		return set(ctx, tx, key, next)
	})

	if err != nil {
		if fnErr != nil && errors.Is(err, fnErr) {
			return err
		}
		return fmt.Errorf("failed to update value[%s]: %w: %w", key, common.ErrStorageUnavailable, err)
	}
	return nil
}

func get(ctx context.Context, db dbx.DBTX, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func set(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, unixepoch())
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}

func del(ctx context.Context, db dbx.DBTX, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}
