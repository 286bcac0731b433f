package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker serializes work across processes with bsm/redislock
type RedisLocker struct {
	client *redislock.Client
	prefix string
	logger *zap.Logger
}

// NewRedisLocker wraps an existing redis client
func NewRedisLocker(rdb redis.UniversalClient, prefix string, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix,
		logger: logger,
	}
}

// Connect opens a redis client at addr and verifies it with PING
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// TryLock implements port.Locker
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lk, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, port.ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	var (
		once sync.Once
		rerr error
	)
	release := func(ctx context.Context) error {
		once.Do(func() {
			rerr = lk.Release(ctx)
			if errors.Is(rerr, redislock.ErrLockNotHeld) {
				l.logger.Warn("Lock expired before release", zap.String("key", key))
				rerr = nil
			}
		})
		return rerr
	}
	return release, nil
}

var _ port.Locker = (*RedisLocker)(nil)
