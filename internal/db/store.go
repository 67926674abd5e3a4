package db

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lamp-blog/lamp/internal/db/sqlc"
)

// Store is the SQLite handle shared by the storage layer. Transactions run
// through a TransactionExecutor so busy errors are retried.
type Store struct {
	*BaseDB

	exec *TransactionExecutor[*sqlc.Queries]
}

// NewStore wraps an open database.
func NewStore(db *sql.DB, log *slog.Logger,
	opts ...TxExecutorOption) *Store {

	if log == nil {
		log = slog.Default()
	}

	base := NewBaseDB(db)
	exec := NewTransactionExecutor(
		base, func(tx *sql.Tx) *sqlc.Queries {
			return base.Queries.WithTx(tx)
		}, log, opts...,
	)

	return &Store{
		BaseDB: base,
		exec:   exec,
	}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.BaseDB.DB
}

// Queries returns queries bound to the pool, outside any transaction.
func (s *Store) Queries() *sqlc.Queries {
	return s.BaseDB.Queries
}

// ExecTx runs fn inside a transaction of the requested kind.
func (s *Store) ExecTx(ctx context.Context, opts TxOptions,
	fn func(*sqlc.Queries) error) error {

	return s.exec.ExecTx(ctx, opts, fn)
}

// WithTx runs fn inside a write transaction.
func (s *Store) WithTx(ctx context.Context,
	fn func(*sqlc.Queries) error) error {

	return s.ExecTx(ctx, WriteTxOption(), fn)
}

// WithTxResult runs fn in a write transaction and returns its value.
func WithTxResult[T any](ctx context.Context, s *Store,
	fn func(*sqlc.Queries) (T, error)) (T, error) {

	var result T
	err := s.WithTx(ctx, func(q *sqlc.Queries) error {
		var err error
		result, err = fn(q)
		return err
	})

	return result, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.BaseDB.DB.Close()
}
