package cache

import (
	"context"
	"time"
)

// BasicOps defines the key-value operations the rate limiter needs.
// The abstraction allows swapping the Redis implementation for an in-memory
// one in tests without touching business logic.
type BasicOps interface {
	// SetNX sets the value only if the key does not exist (atomic operation)
	// Returns true if the key was set, false if it already existed
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Incr atomically increments the integer value of a key by one
	Incr(ctx context.Context, key string) (int64, error)

	// TTL returns the remaining time to live of a key
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire sets a timeout on a key
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Cache is the full client contract, including lifecycle operations.
type Cache interface {
	BasicOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}
