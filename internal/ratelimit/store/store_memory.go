package store

import (
	"context"
	"sync"
	"time"

	"carp/internal/ratelimit/models"
)

// InMemoryStore is a per-process sliding window limiter. Counts are not
// shared between replicas; use RedisStore when more than one runs.
type InMemoryStore struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	now       func() time.Time
	lastSweep time.Time
}

type Option func(*InMemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records one request for key when the window has room.
func (s *InMemoryStore) Allow(_ context.Context, key string, policy models.Policy) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-policy.Window)
	if now.Sub(s.lastSweep) >= policy.Window {
		s.sweep(cutoff)
		s.lastSweep = now
	}
	stamps := prune(s.windows[key], cutoff)
	if len(stamps) >= policy.Limit {
		s.windows[key] = stamps
		return &models.Result{
			Allowed: false,
			Limit:   policy.Limit,
			ResetAt: stamps[0].Add(policy.Window),
		}, nil
	}

	stamps = append(stamps, now)
	s.windows[key] = stamps
	return &models.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - len(stamps),
		ResetAt:   stamps[0].Add(policy.Window),
	}, nil
}

// sweep evicts keys with nothing left in the window, so one-off callers do
// not accumulate. Runs at most once per window.
func (s *InMemoryStore) sweep(cutoff time.Time) {
	for key, stamps := range s.windows {
		if stamps = prune(stamps, cutoff); len(stamps) == 0 {
			delete(s.windows, key)
		} else {
			s.windows[key] = stamps
		}
	}
}

// prune drops timestamps at or before cutoff. stamps is sorted oldest first.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
