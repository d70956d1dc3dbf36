package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carp/internal/platform/metrics"
	"carp/internal/ratelimit/models"
	"carp/internal/ratelimit/store"
	id "carp/pkg/domain"
	"carp/pkg/requestcontext"
	"carp/pkg/testutil"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, models.Policy) (*models.Result, error) {
	return nil, errors.New("redis down")
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(ctx context.Context, h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events/x/registrations", nil).WithContext(ctx)
	h.ServeHTTP(rec, req)
	return rec
}

func guestCtx(ip string) context.Context {
	return requestcontext.WithClientIP(context.Background(), ip)
}

func TestGuests(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	policy := models.Policy{Limit: 2, Window: time.Minute}

	t.Run("guest over budget gets 429", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		h := New(store.NewInMemoryStore(), policy, discard(), WithMetrics(m)).Guests(ok)

		assert.Equal(t, http.StatusNoContent, serve(guestCtx("10.0.0.1"), h).Code)
		second := serve(guestCtx("10.0.0.1"), h)
		assert.Equal(t, http.StatusNoContent, second.Code)
		assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

		third := serve(guestCtx("10.0.0.1"), h)
		require.Equal(t, http.StatusTooManyRequests, third.Code)
		assert.NotEmpty(t, third.Header().Get("Retry-After"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(third.Body).Decode(&body))
		assert.Equal(t, "rate_limited", body["error"])
		assert.Equal(t, 1.0, promtest.ToFloat64(m.RateLimited.WithLabelValues("rejected")))

		assert.Equal(t, http.StatusNoContent, serve(guestCtx("10.0.0.2"), h).Code)
	})

	t.Run("authenticated callers are not limited", func(t *testing.T) {
		h := New(store.NewInMemoryStore(), models.Policy{Limit: 1, Window: time.Minute}, discard()).Guests(ok)
		ctx := requestcontext.WithClientIP(testutil.CallerContext(id.AccountID(uuid.New()), id.RoleStaff), "10.0.0.1")

		for range 3 {
			assert.Equal(t, http.StatusNoContent, serve(ctx, h).Code)
		}
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		h := New(failingLimiter{}, policy, discard(), WithMetrics(m)).Guests(ok)

		assert.Equal(t, http.StatusNoContent, serve(guestCtx("10.0.0.1"), h).Code)
		assert.Equal(t, 1.0, promtest.ToFloat64(m.RateLimited.WithLabelValues("limiter_error")))
	})

	t.Run("zero limit disables throttling", func(t *testing.T) {
		h := New(failingLimiter{}, models.Policy{}, discard()).Guests(ok)
		assert.Equal(t, http.StatusNoContent, serve(guestCtx("10.0.0.1"), h).Code)
	})
}
