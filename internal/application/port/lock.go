package port

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned by Locker.TryLock when another holder owns the key
var ErrLockHeld = errors.New("lock already held")

// Locker serializes work on one key, e.g. finalize attempts for a draft.
type Locker interface {
	// TryLock acquires key without waiting. The returned release func is idempotent.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}
