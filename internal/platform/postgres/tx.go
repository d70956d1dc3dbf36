package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carp/internal/platform/metrics"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/tx"
	"carp/pkg/requestcontext"
)

const (
	defaultTxTimeout = 5 * time.Second
	defaultRetries   = 1
)

// TxRunner runs closures in READ COMMITTED transactions. A closure that fails
// with a transient error is re-run from the start, at most Retries times.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
	retries int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type TxOption func(*TxRunner)

func WithTxTimeout(d time.Duration) TxOption {
	return func(r *TxRunner) {
		r.timeout = d
	}
}

func WithTxRetries(n int) TxOption {
	return func(r *TxRunner) {
		r.retries = n
	}
}

func WithTxLogger(logger *slog.Logger) TxOption {
	return func(r *TxRunner) {
		r.logger = logger
	}
}

func WithTxMetrics(m *metrics.Metrics) TxOption {
	return func(r *TxRunner) {
		r.metrics = m
	}
}

func NewTxRunner(db *sql.DB, opts ...TxOption) *TxRunner {
	r := &TxRunner{db: db, timeout: defaultTxTimeout, retries: defaultRetries}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunInTx joins the transaction already in ctx, or opens a new one.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) || attempt >= r.retries || ctx.Err() != nil {
			break
		}
		if r.logger != nil {
			r.logger.WarnContext(ctx, "retrying transaction after transient failure",
				"attempt", attempt+1,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		if r.metrics != nil {
			r.metrics.IncrementTxRetries()
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		ctx.Err() != nil && !isDomainError(err):
		// Drivers may report a cancelled statement as a server error.
		r.recordFailure("timeout")
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
	case IsRetryable(err):
		r.recordFailure("transient")
		return dErrors.Wrap(err, dErrors.CodeInternal, "transaction failed after retry")
	}
	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(txCtx context.Context) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isDomainError(err error) bool {
	var de *dErrors.Error
	return errors.As(err, &de)
}

func (r *TxRunner) recordFailure(kind string) {
	if r.metrics != nil {
		r.metrics.IncrementTxFailure(kind)
	}
}
