// Package cache provides the key/value cache used to memoize expensive
// dashboard aggregates. Backends are Redis, an in-process map and a no-op
// cache; Resilient wraps any of them with a circuit breaker and metrics.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is a string key/value store with per-entry expiry.
//
// Get reports a miss as ("", false, nil). An error means the backend could
// not answer; callers treat it as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEX(ctx context.Context, key string, ttl time.Duration, value string) error
}

// Closer is implemented by caches holding connections or goroutines
type Closer interface {
	Close() error
}

// Backend names accepted by configuration
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// ErrClosed is returned by a cache after Close
var ErrClosed = errors.New("cache is closed")

// OverviewKey is the cache key holding a user's dashboard overview
func OverviewKey(userID string) string {
	return "dashboard:overview:" + userID
}

// Noop never stores anything; every Get is a miss
type Noop struct{}

// Get always misses
func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// SetEX discards the value
func (Noop) SetEX(context.Context, string, time.Duration, string) error { return nil }
