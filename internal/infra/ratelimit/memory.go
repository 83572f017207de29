package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"attestd/internal/domain"
)

// ErrCapacityExceeded is returned when every tracked key still has an open
// window and no new key can be admitted.
var ErrCapacityExceeded = errors.New("rate limiter capacity exceeded")

type memoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*fixedWindow
	maxKeys int
}

type fixedWindow struct {
	count     int
	windowEnd time.Time
}

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) domain.RateLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &memoryLimiter{
		now:     cfg.Now,
		buckets: make(map[string]*fixedWindow),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *memoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.buckets[key]
	if ok && now.After(bucket.windowEnd) {
		delete(m.buckets, key)
		ok = false
	}
	if !ok {
		if len(m.buckets) >= m.maxKeys {
			m.sweep(now)
		}
		if len(m.buckets) >= m.maxKeys {
			return domain.RateLimitDecision{}, ErrCapacityExceeded
		}
		bucket = &fixedWindow{windowEnd: now.Add(window)}
		m.buckets[key] = bucket
	}

	if bucket.count >= limit {
		return domain.RateLimitDecision{Allowed: false, Limit: limit, ResetAt: bucket.windowEnd}, nil
	}
	bucket.count++
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - bucket.count,
		ResetAt:   bucket.windowEnd,
	}, nil
}

func (m *memoryLimiter) sweep(now time.Time) {
	for key, bucket := range m.buckets {
		if now.After(bucket.windowEnd) {
			delete(m.buckets, key)
		}
	}
}
