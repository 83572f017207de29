package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "client-1", 2, time.Minute)
		if err != nil || !decision.Allowed {
			t.Fatalf("request %d should pass: %+v %v", i, decision, err)
		}
	}
	decision, _ := limiter.Allow(ctx, "client-1", 2, time.Minute)
	if decision.Allowed || decision.Remaining != 0 {
		t.Fatalf("third request should be limited: %+v", decision)
	}
	if other, _ := limiter.Allow(ctx, "client-2", 2, time.Minute); !other.Allowed {
		t.Fatal("keys must not share a window")
	}

	now = now.Add(2 * time.Minute)
	if decision, _ := limiter.Allow(ctx, "client-1", 2, time.Minute); !decision.Allowed {
		t.Fatal("window should reset")
	}
}

func TestMemoryLimiter_Capacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }, MaxKeys: 1})
	ctx := context.Background()
	if _, err := limiter.Allow(ctx, "a", 5, time.Minute); err != nil {
		t.Fatalf("first key: %v", err)
	}
	if _, err := limiter.Allow(ctx, "b", 5, time.Minute); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := limiter.Allow(ctx, "b", 5, time.Minute); err != nil {
		t.Fatalf("expired keys should be swept: %v", err)
	}
}

func TestMemoryLimiter_DisabledWhenLimitZero(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	decision, err := limiter.Allow(context.Background(), "a", 0, time.Minute)
	if err != nil || !decision.Allowed {
		t.Fatalf("expected pass-through, got %+v %v", decision, err)
	}
}
