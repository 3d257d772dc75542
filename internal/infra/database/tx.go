package database

import (
	"context"
	"database/sql"
	"fmt"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	tx    *sql.Tx
	depth int
}

// TxManager runs functions inside a database transaction carried by the
// context. Repositories built on the same *sql.DB join that transaction.
// Nested calls use savepoints, so an inner failure rolls back only the inner
// work and the outer transaction stays usable.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return m.withinSavepoint(ctx, state, fn)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op after commit

	if err := fn(context.WithValue(ctx, txKey{}, &txState{tx: tx})); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (m *TxManager) withinSavepoint(ctx context.Context, state *txState, fn func(ctx context.Context) error) error {
	state.depth++
	defer func() { state.depth-- }()
	name := fmt.Sprintf("sp_%d", state.depth)

	if _, err := state.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := state.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to %s failed: %v)", err, name, rbErr)
		}
		return err
	}
	if _, err := state.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db *sql.DB) querier {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return db
}
