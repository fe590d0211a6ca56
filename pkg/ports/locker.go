package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes access to one session across processes, e.g.
// several `multipage serve` replicas sharing a Redis store.
type DistributedLocker interface {
	// Lock blocks until the session key is held or ctx ends. The lock expires
	// after ttl if the holder dies without calling the returned UnlockFunc.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
