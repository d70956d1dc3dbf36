// Package httptransport assembles the HTTP surface. It wires middleware and
// module handlers and holds no business rules.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"carp/internal/platform/metrics"
	"carp/internal/platform/middleware"
	"carp/pkg/platform/httputil"
	"carp/pkg/platform/middleware/auth"
	"carp/pkg/platform/middleware/metadata"
	"carp/pkg/platform/middleware/requesttime"
)

// RouteRegistrar is implemented by every module handler.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// ReadinessCheck reports whether dependencies can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	TokenValidator auth.TokenValidator
	Ready          ReadinessCheck
	RequestTimeout time.Duration
	MetricsHandler http.Handler
	// GuestLimit throttles unauthenticated API calls. Nil disables it.
	GuestLimit func(http.Handler) http.Handler
	// TrustedProxies may set the client IP through forwarding headers.
	TrustedProxies metadata.TrustedProxies
}

// NewRouter wires the public endpoints. Health and metrics endpoints sit
// outside the caller identification middleware.
func NewRouter(deps Deps, modules ...RouteRegistrar) http.Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata(deps.TrustedProxies))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(req.Context()); err != nil {
				deps.Logger.WarnContext(req.Context(), "readiness check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(timeout))
		api.Use(requesttime.Middleware)
		api.Use(auth.IdentifyCaller(deps.TokenValidator, deps.Logger))
		if deps.GuestLimit != nil {
			api.Use(deps.GuestLimit)
		}
		for _, m := range modules {
			m.Register(api)
		}
	})
	return r
}
