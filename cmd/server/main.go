package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	caregiverhandler "carp/internal/caregiver/handler"
	caregiverservice "carp/internal/caregiver/service"
	identityhandler "carp/internal/identity/handler"
	identitymetrics "carp/internal/identity/metrics"
	identityservice "carp/internal/identity/service"
	jwttoken "carp/internal/jwt_token"
	"carp/internal/platform/config"
	"carp/internal/platform/httpserver"
	"carp/internal/platform/logger"
	"carp/internal/platform/metrics"
	registrationhandler "carp/internal/registration/handler"
	registrationmetrics "carp/internal/registration/metrics"
	registrationservice "carp/internal/registration/service"
	httptransport "carp/internal/transport/http"
	"carp/pkg/platform/middleware/metadata"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	trustedProxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("CARP_TRUSTED_PROXIES: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processMetrics := metrics.New(prometheus.DefaultRegisterer)
	b, err := newBackends(ctx, cfg, log, processMetrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(); err != nil {
			log.Error("close database", "error", err)
		}
	}()

	limiter, redisClient, err := guestLimiter(ctx, cfg, log, processMetrics)
	if err != nil {
		return err
	}
	ready := b.ready
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("close redis", "error", err)
			}
		}()
		ready = func(ctx context.Context) error {
			if err := b.ready(ctx); err != nil {
				return err
			}
			return redisClient.Health(ctx)
		}
	}

	identity := identityservice.New(b.participants,
		identityservice.WithTxRunner(b.runner),
		identityservice.WithLogger(log),
		identityservice.WithMetrics(identitymetrics.New(prometheus.DefaultRegisterer)),
	)
	caregivers := caregiverservice.New(b.links, identity,
		caregiverservice.WithTxRunner(b.runner),
		caregiverservice.WithLogger(log),
	)
	registrations := registrationservice.New(b.events, identity, caregivers,
		registrationservice.WithTxRunner(b.runner),
		registrationservice.WithLogger(log),
		registrationservice.WithMetrics(registrationmetrics.New(prometheus.DefaultRegisterer)),
	)

	jwtValidator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, ""))
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        processMetrics,
		TokenValidator: jwtValidator,
		Ready:          ready,
		MetricsHandler: metrics.Handler(),
		GuestLimit:     limiter.Guests,
		TrustedProxies: trustedProxies,
	},
		registrationhandler.New(registrations, log),
		identityhandler.New(identity, log),
		caregiverhandler.New(caregivers, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.ShutdownGrace, log)
	})

	log.Info("carp started", "addr", cfg.Addr, "store", cfg.Store)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info("carp stopped")
	return nil
}
