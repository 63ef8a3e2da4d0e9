package driven

import (
	"context"
	"time"
)

// DistributedLock keeps two terminals from draining into the same remote
// store at once. Implementations are re-entrant for the holder.
type DistributedLock interface {
	// Acquire reports false, without error, when another terminal holds name.
	// Holding the lock already refreshes its TTL.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release is a no-op when this terminal does not hold name.
	Release(ctx context.Context, name string) error

	// Extend fails when this terminal does not hold name. Backends without
	// expiry accept it as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
