// Package txn implements the transaction envelope (C9, spec.md §4.9):
// wraps a persistence transaction with a post-commit hook list so
// side-effects fire only after durability. Grounded on
// _examples/original_source/server/src/database/transaction.rs, adapted
// from sqlx::Transaction + an async hook trait to database/sql's *sql.Tx
// plus a plain function-value hook.
package txn

import (
	"context"
	"database/sql"
	"fmt"
)

// Hook is a callable registered on a transaction via OnCommit. It runs
// after the inner transaction has successfully committed (spec.md
// invariant 4: a post-commit hook fires iff its enclosing transaction
// commits).
type Hook func(ctx context.Context) error

// Tx wraps a *sql.Tx together with a list of post-commit hooks.
type Tx struct {
	inner *sql.Tx
	hooks []Hook
	done  bool
}

// Begin starts a new transaction on db.
func Begin(ctx context.Context, db *sql.DB) (*Tx, error) {
	inner, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("txn: begin: %w", err)
	}
	return &Tx{inner: inner}, nil
}

// Exec exposes the underlying transaction's Exec for callers that need
// direct SQL access, analogous to the original's sqlx::Executor
// passthrough.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.inner.ExecContext(ctx, query, args...)
}

// Query exposes the underlying transaction's Query.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.inner.QueryContext(ctx, query, args...)
}

// QueryRow exposes the underlying transaction's QueryRow.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.inner.QueryRowContext(ctx, query, args...)
}

// OnCommit registers hook to run after a successful Commit. Hooks run in
// registration order; a hook failure is returned but earlier hooks are
// not rolled back, since the commit has already succeeded.
func (t *Tx) OnCommit(hook Hook) {
	t.hooks = append(t.hooks, hook)
}

// Commit commits the inner transaction, then runs every registered hook
// in order. If commit itself fails, no hook runs.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("txn: already finished")
	}
	t.done = true

	if err := t.inner.Commit(); err != nil {
		return fmt.Errorf("txn: commit: %w", err)
	}

	for i, hook := range t.hooks {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("txn: post-commit hook %d: %w", i, err)
		}
	}
	return nil
}

// Rollback rolls the inner transaction back and discards all hooks
// (spec.md invariant 4). Safe to call after Commit has already run (it is
// then a no-op), matching the "drop a finished transaction" case.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.hooks = nil
	return t.inner.Rollback()
}
