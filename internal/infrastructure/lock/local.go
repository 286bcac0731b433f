// Package lock provides port.Locker implementations used to serialize
// finalize attempts for one draft.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
)

// LocalLocker holds keys in process memory. Entries expire after their ttl
// so a crashed holder cannot block a draft forever.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	seq  uint64
	now  func() time.Time
}

type localEntry struct {
	token   uint64
	expires time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

// TryLock implements port.Locker
func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, port.ErrLockHeld
	}

	l.seq++
	token := l.seq
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}

	var once sync.Once
	release := func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// a newer holder may own the key after our ttl lapsed
			if entry, ok := l.held[key]; ok && entry.token == token {
				delete(l.held, key)
			}
		})
		return nil
	}
	return release, nil
}

var _ port.Locker = (*LocalLocker)(nil)
