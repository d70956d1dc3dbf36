package main

import (
	"context"
	"log/slog"

	"carp/internal/platform/config"
	"carp/internal/platform/metrics"
	"carp/internal/platform/redis"
	ratelimitmw "carp/internal/ratelimit/middleware"
	"carp/internal/ratelimit/models"
	ratelimitstore "carp/internal/ratelimit/store"
)

// guestLimiter picks the shared Redis counter when configured and the
// in-process window otherwise. client is nil without Redis.
func guestLimiter(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics) (*ratelimitmw.Middleware, *redis.Client, error) {
	policy := models.Policy{Limit: cfg.GuestRateLimit, Window: cfg.GuestRateWindow}

	client, err := redis.New(ctx, redis.Options{URL: cfg.RedisURL})
	if err != nil {
		return nil, nil, err
	}
	var limiter ratelimitmw.Limiter = ratelimitstore.NewInMemoryStore()
	if client != nil {
		limiter = ratelimitstore.NewRedisStore(client.Client)
		log.Info("guest rate limits shared through redis")
	}
	return ratelimitmw.New(limiter, policy, log, ratelimitmw.WithMetrics(m)), client, nil
}
