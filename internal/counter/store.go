// Package counter provides the key/value counter store backing rate-limit
// windows and quota buckets.
//
// The package abstracts over two backends:
//   - Redis: shared store, correct across multiple server processes
//   - Memory: in-process guarded map, used when Redis is unreachable or
//     not configured
//
// The production default is the failover store, which runs Redis behind a
// circuit breaker and degrades to the in-process map when the backend
// fails. The in-process map is NOT authoritative across instances: each
// process counts independently while degraded, so limits may be enforced
// per-instance instead of globally. This consistency gap is accepted in
// exchange for keeping the request path available.
//
// All implementations are safe for concurrent use, and every mutation is a
// single atomic primitive, never a read-modify-write pair.
package counter

import (
	"context"
	"time"
)

// Store defines the counter operations.
// All implementations must be safe for concurrent use.
type Store interface {
	// Increment atomically increments the counter for key, creating it
	// with TTL window if absent. Returns the post-increment count and the
	// window's start time.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, windowStart time.Time, err error)

	// Get returns the current value for key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) (int64, error)

	// Set stores a value with a time-to-live.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	// Close releases resources associated with the store.
	// Close is idempotent; operations after Close return ErrClosed.
	Close() error
}

// Store mode strings reported by ModeReporter.
const (
	ModeShared   = "shared"
	ModeLocal    = "local"
	ModeDegraded = "degraded"
)

// ModeReporter is an optional interface for stores that can report whether
// they are currently authoritative across instances.
//
// Use type assertion to check if a store implements this interface:
//
//	if mr, ok := s.(counter.ModeReporter); ok {
//		mode := mr.Mode()
//	}
type ModeReporter interface {
	// Mode returns ModeShared, ModeLocal, or ModeDegraded.
	Mode() string
}

// Pinger is an optional interface for stores that support health checks.
// For local stores, Ping always returns nil.
type Pinger interface {
	Ping(ctx context.Context) error
}
