package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"carp/internal/ratelimit/models"
)

const keyPrefix = "carp:rl:"

// RedisStore is a fixed window counter shared by every replica. A burst of up
// to twice the limit is possible across a window boundary.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Allow increments the counter for key's current window. INCR and PEXPIRE run
// in one MULTI so a counter never outlives its window.
func (s *RedisStore) Allow(ctx context.Context, key string, policy models.Policy) (*models.Result, error) {
	windowStart := s.now().Truncate(policy.Window)
	redisKey := keyPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, policy.Window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment rate window: %w", err)
	}

	count := int(incr.Val())
	result := &models.Result{
		Allowed: count <= policy.Limit,
		Limit:   policy.Limit,
		ResetAt: windowStart.Add(policy.Window),
	}
	if result.Allowed {
		result.Remaining = policy.Limit - count
	}
	return result, nil
}
