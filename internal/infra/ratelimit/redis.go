package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"attestd/internal/domain"
)

const redisKeyPrefix = "attestd:ratelimit:"

type redisLimiter struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisLimiter shares one fixed window per key across every replica
// talking to the same Redis. SETNX creates the window with its TTL inside
// the same MULTI as the INCR, so a key never exists without an expiry.
func NewRedisLimiter(client redis.Cmdable, now func() time.Time) (domain.RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &redisLimiter{client: client, now: now}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if window < time.Millisecond {
		window = time.Second
	}
	redisKey := redisKeyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, window)
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := incr.Val()
	resetAt := r.now()
	if d := ttl.Val(); d > 0 {
		resetAt = resetAt.Add(d)
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
