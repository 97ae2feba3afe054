package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"exrun/internal/common/cache"
	"exrun/internal/common/ratelimit"
	appErr "exrun/pkg/errors"

	"github.com/alicebob/miniredis/v2"
)

func newTestLimiter(t *testing.T) *ratelimit.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("new redis cache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return ratelimit.NewService(c, time.Second)
}

func TestAllowWithinBudget(t *testing.T) {
	t.Parallel()
	limiter := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, "runner:rate:ip:1.2.3.4:start", 3, time.Minute); err != nil {
			t.Fatalf("call %d should be allowed: %v", i+1, err)
		}
	}
}

func TestAllowRejectsOverBudget(t *testing.T) {
	t.Parallel()
	limiter := newTestLimiter(t)
	ctx := context.Background()

	key := "runner:rate:ip:5.6.7.8:start"
	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, key, 3, time.Minute); err != nil {
			t.Fatalf("call %d should be allowed: %v", i+1, err)
		}
	}
	err := limiter.Allow(ctx, key, 3, time.Minute)
	if !appErr.Is(err, appErr.TooManyRequests) {
		t.Fatalf("expected TooManyRequests, got %v", err)
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	t.Parallel()
	limiter := newTestLimiter(t)
	ctx := context.Background()

	if err := limiter.Allow(ctx, "runner:rate:ip:1.1.1.1:start", 1, time.Minute); err != nil {
		t.Fatalf("first key should be allowed: %v", err)
	}
	if err := limiter.Allow(ctx, "runner:rate:ip:2.2.2.2:start", 1, time.Minute); err != nil {
		t.Fatalf("second key should be allowed: %v", err)
	}
}

func TestAllowResetsAfterWindow(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("new redis cache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	limiter := ratelimit.NewService(c, time.Second)
	ctx := context.Background()

	key := "runner:rate:ip:9.9.9.9:start"
	if err := limiter.Allow(ctx, key, 1, time.Minute); err != nil {
		t.Fatalf("first call should be allowed: %v", err)
	}
	if err := limiter.Allow(ctx, key, 1, time.Minute); !appErr.Is(err, appErr.TooManyRequests) {
		t.Fatalf("second call should be rejected, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := limiter.Allow(ctx, key, 1, time.Minute); err != nil {
		t.Fatalf("call after window should be allowed: %v", err)
	}
}

func TestAllowWithoutCacheIsUnavailable(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.NewService(nil, time.Second)
	err := limiter.Allow(context.Background(), "any", 3, time.Minute)
	if !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestAllowDisabledBudgetPasses(t *testing.T) {
	t.Parallel()
	limiter := newTestLimiter(t)
	if err := limiter.Allow(context.Background(), "any", 0, time.Minute); err != nil {
		t.Fatalf("zero budget disables limiting: %v", err)
	}
}
