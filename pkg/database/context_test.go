package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct{ name string }

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func TestGetQuerier_PrefersContextQuerier(t *testing.T) {
	q := &fakeQuerier{name: "tx"}
	ctx := WithQuerier(context.Background(), q)

	assert.Same(t, q, GetQuerier(ctx, &DB{}))
}

func TestGetQuerier_FallsBackToPool(t *testing.T) {
	db := &DB{}
	got := GetQuerier(context.Background(), db)
	assert.Equal(t, db.Pool, got)
}

func TestInTransaction_JoinsExistingScope(t *testing.T) {
	q := &fakeQuerier{name: "outer"}
	ctx := WithQuerier(context.Background(), q)

	called := false
	err := InTransaction(ctx, nil, func(inner context.Context) error {
		called = true
		assert.Same(t, q, GetQuerier(inner, nil), "existing scope must be joined, not replaced")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestInTransaction_NilDatabaseRunsDirectly(t *testing.T) {
	sentinel := errors.New("inner failure")

	err := InTransaction(context.Background(), nil, func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
