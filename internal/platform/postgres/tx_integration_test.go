//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"carp/internal/platform/metrics"
	"carp/internal/platform/postgres"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/tx"
	"carp/pkg/testutil/containers"
)

type TxRunnerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
}

func TestTxRunnerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(TxRunnerSuite))
}

func (s *TxRunnerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *TxRunnerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "registrations", "events"))
}

func (s *TxRunnerSuite) insertEvent(ctx context.Context) error {
	_, err := postgres.Conn(ctx, s.postgres.DB).ExecContext(ctx,
		`INSERT INTO events (id, title, starts_at, max_capacity, created_at) VALUES ($1, 'Bingo', now(), 1, now())`,
		uuid.New())
	return err
}

func (s *TxRunnerSuite) events() int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(context.Background(), `SELECT count(*) FROM events`).Scan(&n))
	return n
}

func (s *TxRunnerSuite) TestCommitAndRollback() {
	runner := postgres.NewTxRunner(s.postgres.DB)
	ctx := context.Background()

	s.Require().NoError(runner.RunInTx(ctx, s.insertEvent))
	s.Equal(1, s.events())

	boom := errors.New("boom")
	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		s.Require().NoError(s.insertEvent(txCtx))
		return boom
	})
	s.ErrorIs(err, boom)
	s.Equal(1, s.events())
}

func (s *TxRunnerSuite) TestNestedCallJoinsOuterTransaction() {
	runner := postgres.NewTxRunner(s.postgres.DB)

	err := runner.RunInTx(context.Background(), func(outer context.Context) error {
		outerTx, _ := tx.From(outer)
		s.Require().NoError(runner.RunInTx(outer, func(inner context.Context) error {
			innerTx, _ := tx.From(inner)
			s.Same(outerTx, innerTx)
			return s.insertEvent(inner)
		}))
		return errors.New("abort outer")
	})
	s.Error(err)
	s.Equal(0, s.events())
}

func (s *TxRunnerSuite) TestTransientFailureIsRetriedOnce() {
	m := metrics.New(prometheus.NewRegistry())
	runner := postgres.NewTxRunner(s.postgres.DB, postgres.WithTxMetrics(m))

	attempts := 0
	err := runner.RunInTx(context.Background(), func(txCtx context.Context) error {
		attempts++
		if err := s.insertEvent(txCtx); err != nil {
			return err
		}
		if attempts == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	s.Require().NoError(err)
	s.Equal(2, attempts)
	s.Equal(1, s.events(), "the failed attempt rolled back")
	s.Equal(1.0, promtest.ToFloat64(m.TxRetries))
}

func (s *TxRunnerSuite) TestPersistentTransientFailureIsInternal() {
	m := metrics.New(prometheus.NewRegistry())
	runner := postgres.NewTxRunner(s.postgres.DB, postgres.WithTxMetrics(m), postgres.WithTxRetries(2))

	attempts := 0
	err := runner.RunInTx(context.Background(), func(context.Context) error {
		attempts++
		return &pq.Error{Code: "40P01"}
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(3, attempts)
	s.Equal(1.0, promtest.ToFloat64(m.TxFailures.WithLabelValues("transient")))
}

func (s *TxRunnerSuite) TestBusinessErrorsAreNotRetried() {
	runner := postgres.NewTxRunner(s.postgres.DB)
	attempts := 0
	err := runner.RunInTx(context.Background(), func(context.Context) error {
		attempts++
		return dErrors.New(dErrors.CodeEventFull, "event is full")
	})
	s.True(dErrors.HasCode(err, dErrors.CodeEventFull))
	s.Equal(1, attempts)
}

func (s *TxRunnerSuite) TestDeadlineMapsToTimeout() {
	runner := postgres.NewTxRunner(s.postgres.DB, postgres.WithTxTimeout(50*time.Millisecond))

	err := runner.RunInTx(context.Background(), func(txCtx context.Context) error {
		_, err := postgres.Conn(txCtx, s.postgres.DB).ExecContext(txCtx, `SELECT pg_sleep(1)`)
		return err
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = runner.RunInTx(ctx, func(context.Context) error { return nil })
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *TxRunnerSuite) TestOpenWithPgxAndMigrateTwice() {
	ctx := context.Background()
	db, err := postgres.Open(ctx, postgres.Options{Driver: postgres.DriverPGX, URL: s.postgres.DSN})
	s.Require().NoError(err)
	defer db.Close()

	s.NoError(postgres.Migrate(ctx, db))

	_, err = postgres.Open(ctx, postgres.Options{Driver: "mysql", URL: s.postgres.DSN})
	s.Error(err)
}
