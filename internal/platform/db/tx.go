package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCommitFailed wraps errors returned by COMMIT. The transaction may or may not
// have been applied by the server.
var ErrCommitFailed = errors.New("platform/db: commit failed")

// WithTx executes fn within a read-committed transaction. Row locks taken with
// SELECT ... FOR UPDATE wait for concurrent writers instead of failing.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return WithTxOptions(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// WithTxOptions executes fn within a transaction using opts.
func WithTxOptions(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return StaleVersion(err)
	}

	// A serialization failure at commit means the server rolled back.
	if err := tx.Commit(ctx); err != nil {
		if IsSerializationFailure(err) {
			return StaleVersion(err)
		}
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	return nil
}
