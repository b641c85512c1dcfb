package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates periodic work across service instances,
// e.g. so only one instance sweeps stale documents per tick.
type DistributedLock interface {
	// Acquire attempts to take a named lock for ttl.
	// Returns false without error when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives up a named lock. Safe to call when the lock is not held.
	Release(ctx context.Context, name string) error

	// Extend pushes out the TTL of a held lock.
	// PostgreSQL advisory locks have no TTL and treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
