package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// TxFromContext returns the transaction bound to ctx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// TxRunner runs fn transactionally. Services depend on this instead of the
// pool so tests can substitute a passthrough runner.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// RunnerFor returns a TxRunner bound to pool.
func RunnerFor(pool *pgxpool.Pool) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return WithTx(ctx, pool, fn)
	}
}

// PassthroughRunner runs fn without a transaction. Used in tests with mock
// repositories.
func PassthroughRunner(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// WithTx runs fn inside a transaction. The transaction is attached to the
// context passed to fn, so repositories that resolve their connection via
// TxFromContext participate automatically. Rolls back on error or panic.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
