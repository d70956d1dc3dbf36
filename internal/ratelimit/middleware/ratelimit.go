// Package middleware throttles anonymous traffic. Guests can submit national
// IDs without an account, so each client address gets a request budget.
// Authenticated callers are not limited here.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"carp/internal/access"
	"carp/internal/platform/metrics"
	"carp/internal/ratelimit/models"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/httputil"
	"carp/pkg/requestcontext"
)

type Limiter interface {
	Allow(ctx context.Context, key string, policy models.Policy) (*models.Result, error)
}

type Middleware struct {
	limiter Limiter
	policy  models.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Middleware)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func New(limiter Limiter, policy models.Policy, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		policy:  policy,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !policy.Enabled() {
		logger.Info("guest rate limiting disabled")
	}
	return m
}

// Guests must run after the caller has been identified. A limiter failure
// lets the request through.
func (m *Middleware) Guests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !m.policy.Enabled() || access.FromContext(ctx).Authenticated() {
			next.ServeHTTP(w, r)
			return
		}

		ip := requestcontext.ClientIP(ctx)
		result, err := m.limiter.Allow(ctx, models.GuestKey(ip), m.policy)
		if err != nil {
			m.logger.ErrorContext(ctx, "guest rate limit check failed", "error", err)
			m.count("limiter_error")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		if !result.Allowed {
			m.count("rejected")
			m.logger.WarnContext(ctx, "guest rate limited",
				"client_ip", ip,
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) count(outcome string) {
	if m.metrics != nil {
		m.metrics.IncrementRateLimited(outcome)
	}
}
