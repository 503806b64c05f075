// Package cache stores short-lived byte payloads, such as replayable HTTP
// responses, behind a backend-agnostic interface.
package cache

import (
	"context"
	"time"
)

// Cache is implemented by RedisCache and MemoryCache. Get reports a miss
// with ok == false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}
