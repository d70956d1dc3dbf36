package main

import (
	"context"
	"fmt"
	"log/slog"

	caregiverservice "carp/internal/caregiver/service"
	caregiverstore "carp/internal/caregiver/store"
	identityservice "carp/internal/identity/service"
	identitystore "carp/internal/identity/store"
	"carp/internal/platform/config"
	"carp/internal/platform/metrics"
	"carp/internal/platform/postgres"
	registrationservice "carp/internal/registration/service"
	registrationstore "carp/internal/registration/store"
	"carp/pkg/platform/tx"
)

// backends are the stores plus the one transaction runner every service shares.
type backends struct {
	participants identityservice.Store
	links        caregiverservice.Store
	events       registrationservice.Store
	runner       tx.Runner
	ready        func(ctx context.Context) error
	close        func() error
}

func newBackends(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics) (*backends, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory stores; data is lost on restart")
		participants := identitystore.NewInMemoryStore()
		return &backends{
			participants: participants,
			links:        caregiverstore.NewInMemoryStore(),
			events:       registrationstore.NewInMemoryStore(participants),
			runner:       tx.NewMemoryRunner(),
			ready:        func(context.Context) error { return nil },
			close:        func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(ctx, postgres.Options{
		Driver:       cfg.DBDriver,
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxOpenConns / 2,
	})
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", "driver", cfg.DBDriver)

	return &backends{
		participants: identitystore.NewPostgres(db),
		links:        caregiverstore.NewPostgres(db),
		events:       registrationstore.NewPostgres(db),
		runner: postgres.NewTxRunner(db,
			postgres.WithTxTimeout(cfg.TxTimeout),
			postgres.WithTxRetries(cfg.TxRetries),
			postgres.WithTxLogger(log),
			postgres.WithTxMetrics(m),
		),
		ready: db.PingContext,
		close: db.Close,
	}, nil
}
