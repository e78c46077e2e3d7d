package interfaces

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX - общий интерфейс для pgxpool.Pool, pgxpool.Conn и pgx.Tx.
// Репозитории принимают его в каждом методе, чтобы вызывающий решал,
// в какой транзакции или на каком соединении выполнять запрос.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a dedicated pool connection that must be released.
type Conn interface {
	DBTX
	Release()
}

// TxManager hands out connections and transactions.
type TxManager interface {
	// Querier returns the shared pool for request-scoped queries.
	Querier() DBTX
	// Acquire takes a fresh connection from the pool.
	Acquire(ctx context.Context) (Conn, error)
	// WithinTx runs fn in a transaction and commits if fn returns nil.
	WithinTx(ctx context.Context, fn func(tx DBTX) error) error
}
