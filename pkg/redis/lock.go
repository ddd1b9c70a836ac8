package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("redis: lock held by another caller")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
}

// Locker hands out short-lived advisory locks keyed by string.
// A lock expires after ttl even if its holder never releases it.
type Locker struct {
	client       lockClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

func NewLocker(client *goredis.Client, prefix string, ttl time.Duration) *Locker {
	return newLocker(client, prefix, ttl)
}

func newLocker(client lockClient, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		client:       client,
		prefix:       prefix,
		ttl:          ttl,
		pollInterval: 50 * time.Millisecond,
	}
}

// Acquire blocks until the lock for key is free, ctx is done, or one ttl has
// elapsed. The returned release func only deletes the lock if it is still ours.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", fullKey, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}

	release := func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("redis release %s: %w", fullKey, err)
		}
		return nil
	}
	return release, nil
}
