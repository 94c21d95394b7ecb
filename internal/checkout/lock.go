package checkout

import (
	"context"
	"time"

	"github.com/leafshop/leafshop-backend/pkg/redis"
)

const lockScope = "checkout"

// Locker hands out a per-cart lease. TryLock returns redis.ErrLockHeld when
// another caller holds the cart.
type Locker interface {
	TryLock(ctx context.Context, cartKey string, ttl time.Duration) (func(context.Context) error, error)
}

type lockClient interface {
	redis.LockStore
	LockKey(scope, id string) string
}

// RedisLocker serializes checkouts of the same cart across API replicas and
// the sweeper.
type RedisLocker struct {
	client lockClient
}

func NewRedisLocker(client lockClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, cartKey string, ttl time.Duration) (func(context.Context) error, error) {
	return redis.TryLock(ctx, l.client, l.client.LockKey(lockScope, cartKey), ttl)
}
