package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/lamp-blog/lamp/internal/db/sqlc"
)

// DefaultStoreTimeout bounds a single storage interaction.
var DefaultStoreTimeout = time.Second * 10

const (
	// DefaultNumTxRetries is how often a transaction that failed with a
	// busy or locked database is attempted again.
	DefaultNumTxRetries = 10

	// DefaultInitialRetryDelay is the first backoff step. Each attempt
	// draws a delay between 50% and 150% of this value, doubled per
	// attempt up to DefaultMaxRetryDelay.
	DefaultInitialRetryDelay = time.Millisecond * 40

	// DefaultMaxRetryDelay caps the backoff.
	DefaultMaxRetryDelay = time.Second * 3
)

// TxOptions selects the kind of transaction to open.
type TxOptions interface {
	// ReadOnly returns true if the transaction should be read-only.
	ReadOnly() bool
}

// BaseTxOptions is the TxOptions the database understands.
type BaseTxOptions struct {
	readOnly bool
}

// ReadOnly implements TxOptions.
func (a *BaseTxOptions) ReadOnly() bool {
	return a.readOnly
}

// ReadTxOption requests a read-only transaction.
func ReadTxOption() *BaseTxOptions {
	return &BaseTxOptions{readOnly: true}
}

// WriteTxOption requests a read-write transaction.
func WriteTxOption() *BaseTxOptions {
	return &BaseTxOptions{}
}

// BatchedTx runs a body against a query set Q inside one transaction.
type BatchedTx[Q any] interface {
	ExecTx(ctx context.Context, txOptions TxOptions,
		txBody func(Q) error) error
}

// QueryCreator binds a query set to an open transaction.
type QueryCreator[Q any] func(*sql.Tx) Q

// BatchedQuerier is a query source that can also open transactions.
type BatchedQuerier interface {
	sqlc.Querier

	// BeginTx opens a transaction with the given options.
	BeginTx(ctx context.Context, options TxOptions) (*sql.Tx, error)
}

// BaseDB pairs a connection pool with the queries bound to it.
type BaseDB struct {
	*sql.DB

	*sqlc.Queries
}

// NewBaseDB wraps db.
func NewBaseDB(db *sql.DB) *BaseDB {
	return &BaseDB{
		DB:      db,
		Queries: sqlc.New(db),
	}
}

// BeginTx maps TxOptions onto sql.TxOptions.
func (s *BaseDB) BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx,
	error) {

	return s.DB.BeginTx(ctx, &sql.TxOptions{
		ReadOnly: opts.ReadOnly(),
	})
}
