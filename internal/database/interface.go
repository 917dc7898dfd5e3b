package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXDB is an interface that both pgxpool.Pool and pgx.Tx implement.
// This allows repositories to work with either a connection pool or a transaction,
// which is essential for testing with transaction-based isolation.
type PGXDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner can start a database transaction. On a pgx.Tx this opens a
// savepoint, so nested units of work roll back independently.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB is a query surface that can also open a transaction.
type DB interface {
	PGXDB
	TxBeginner
}

// Ensure types implement the interface at compile time.
var (
	_ PGXDB      = (*pgxpool.Pool)(nil)
	_ PGXDB      = (pgx.Tx)(nil)
	_ TxBeginner = (*pgxpool.Pool)(nil)
	_ DB         = (*pgxpool.Pool)(nil)
	_ DB         = (pgx.Tx)(nil)
)

// InTx runs fn inside a transaction opened on db. The transaction commits
// when fn returns nil and rolls back otherwise.
func InTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
