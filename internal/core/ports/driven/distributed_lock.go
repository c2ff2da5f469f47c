package driven

import (
	"context"
	"time"
)

// DistributedLock serialises corpus writers across processes that share one
// data directory and moderation store.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns false without error when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock.
	// Returns error if the lock is not held by this instance.
	// Implementations without TTLs (PostgreSQL advisory locks) treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
