// Package tx carries the unit-of-work boundary through context.
//
// Runners open a transaction, stash it in the context handed to the closure,
// and stores pick it up with From. A RunInTx call made with a context that
// already carries a transaction joins it instead of opening a new one.
package tx

import (
	"context"
	"database/sql"
	"sync"
)

// Runner executes fn atomically. fn must do all its work through txCtx.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type ctxKey struct{}
type memoryKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// MemoryRunner serializes closures behind one mutex so in-memory stores get
// the isolation a database transaction gives Postgres stores. Stores record
// compensations with OnRollback; they run in reverse order when fn fails.
type MemoryRunner struct {
	mu sync.Mutex
}

type memoryTx struct {
	owner *MemoryRunner
	undo  []func()
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if mt, ok := ctx.Value(memoryKey{}).(*memoryTx); ok && mt.owner == r {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	mt := &memoryTx{owner: r}
	if err := fn(context.WithValue(ctx, memoryKey{}, mt)); err != nil {
		for i := len(mt.undo) - 1; i >= 0; i-- {
			mt.undo[i]()
		}
		return err
	}
	return nil
}

// OnRollback registers undo to run if the enclosing memory transaction fails.
// Outside a memory transaction it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	if mt, ok := ctx.Value(memoryKey{}).(*memoryTx); ok {
		mt.undo = append(mt.undo, undo)
	}
}
