// Package ratelimit enforces fixed-window request limits backed by the cache.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"exrun/internal/common/cache"
	appErr "exrun/pkg/errors"
)

const defaultCacheTimeout = 2 * time.Second

// Service enforces fixed-window limits using the shared cache.
type Service struct {
	cache        cache.BasicOps
	cacheTimeout time.Duration
}

// NewService creates a limiter on top of a cache client.
func NewService(cacheClient cache.BasicOps, cacheTimeout time.Duration) *Service {
	if cacheTimeout <= 0 {
		cacheTimeout = defaultCacheTimeout
	}
	return &Service{cache: cacheClient, cacheTimeout: cacheTimeout}
}

// Allow counts one hit against key and fails with TooManyRequests once the
// window's budget is spent.
func (s *Service) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if s.cache == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 || window <= 0 {
		return nil
	}

	ctxCache, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	acquired, err := s.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
	}
	var count int64
	if acquired {
		count = 1
	} else {
		count, err = s.cache.Incr(ctxCache, key)
		if err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
		}
		// A crash between SetNX and Expire can leave a counter without TTL;
		// repair it here so the window always closes.
		ttl, ttlErr := s.cache.TTL(ctxCache, key)
		if ttlErr == nil && ttl <= 0 {
			_ = s.cache.Expire(ctxCache, key, window)
		}
	}
	if int(count) > max {
		return appErr.New(appErr.TooManyRequests).WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
	}
	return nil
}
