package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations repositories need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so the same repository code runs
// inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type contextKey string

const querierKey contextKey = "querier"

// WithQuerier stores a querier (usually an open transaction) in the context.
// Repository calls made with the returned context run on that querier.
func WithQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, querierKey, q)
}

// GetQuerier retrieves the querier from context, falling back to the pool.
func GetQuerier(ctx context.Context, db *DB) Querier {
	if q, ok := ctx.Value(querierKey).(Querier); ok {
		return q
	}
	return db.Pool
}

// InTransaction runs fn with a context carrying an open transaction.
// Commits if fn returns nil, rolls back every change otherwise.
// A context that already carries a querier joins that scope instead of
// opening a nested transaction; a nil database runs fn directly.
func InTransaction(ctx context.Context, db *DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(querierKey).(Querier); ok {
		return fn(ctx)
	}
	if db == nil || db.Pool == nil {
		return fn(ctx)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(WithQuerier(ctx, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
