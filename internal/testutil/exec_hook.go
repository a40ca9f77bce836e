package testutil

import (
	"context"
	"database/sql"

	"github.com/andy/billable/internal/db"
)

// ExecHookUoW runs transactions through the production UnitOfWork and calls
// BeforeExec ahead of every ExecContext issued inside them. n counts writes
// from 1 per transaction; a non-nil error replaces the statement's result.
type ExecHookUoW struct {
	UoW        db.UnitOfWork
	BeforeExec func(ctx context.Context, n int) error
}

// FailOnExec returns a UoW whose nth write in each transaction fails with err.
func FailOnExec(database *db.DB, n int, err error) *ExecHookUoW {
	return &ExecHookUoW{
		UoW: db.NewUnitOfWork(database.DB),
		BeforeExec: func(_ context.Context, i int) error {
			if i == n {
				return err
			}
			return nil
		},
	}
}

func (u *ExecHookUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return u.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &hookedTx{DBTX: tx, before: u.BeforeExec})
	})
}

type hookedTx struct {
	db.DBTX
	before func(ctx context.Context, n int) error
	n      int
}

func (h *hookedTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	h.n++
	if h.before != nil {
		if err := h.before(ctx, h.n); err != nil {
			return nil, err
		}
	}
	return h.DBTX.ExecContext(ctx, query, args...)
}
