package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Tx 事务内可用的操作，提交与回滚由 WithTx 负责
type Tx interface {
	QueryOne(ctx context.Context, dest any, sql string, args ...any) error
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

type tx struct {
	q pgx.Tx
}

func (t tx) QueryOne(ctx context.Context, dest any, sql string, args ...any) error {
	return queryOne(ctx, t.q, dest, sql, args...)
}

func (t tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return exec(ctx, t.q, sql, args...)
}

// WithTx 在事务中执行 fn，fn 返回 nil 时提交，返回错误或 panic 时回滚
//
// QueryTimeout 作用于整个事务而不是其中的单条语句。
func (c *Client) WithTx(ctx context.Context, fn func(Tx) error) error {
	ctx, cancel := c.applyQueryTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, c.pool, func(t pgx.Tx) error {
		return fn(tx{q: t})
	})
}
