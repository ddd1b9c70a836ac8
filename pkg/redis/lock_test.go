package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellcare/cellcare_backend/config"
)

type fakeLockClient struct {
	mu      sync.Mutex
	values  map[string]interface{}
	setErr  error
	evalled int
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{values: map[string]interface{}{}}
}

func (f *fakeLockClient) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return goredis.NewBoolResult(false, f.setErr)
	}
	if _, held := f.values[key]; held {
		return goredis.NewBoolResult(false, nil)
	}
	f.values[key] = value
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *goredis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalled++
	if f.values[keys[0]] == args[0] {
		delete(f.values, keys[0])
		return goredis.NewCmdResult(int64(1), nil)
	}
	return goredis.NewCmdResult(int64(0), nil)
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	client := newFakeLockClient()
	l := newLocker(client, "assessment:", time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "c1:2026-10-17")
	require.NoError(t, err)
	assert.Contains(t, client.values, "assessment:c1:2026-10-17")

	require.NoError(t, release(ctx))
	assert.Empty(t, client.values)
	assert.Equal(t, 1, client.evalled)
}

func TestLocker_ContendedLockTimesOut(t *testing.T) {
	client := newFakeLockClient()
	l := newLocker(client, "", 100*time.Millisecond)
	l.pollInterval = 10 * time.Millisecond
	ctx := context.Background()

	_, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestLocker_WaitsForRelease(t *testing.T) {
	client := newFakeLockClient()
	l := newLocker(client, "", time.Second)
	l.pollInterval = 5 * time.Millisecond
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = release(ctx)
	}()

	release2, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestLocker_SetError(t *testing.T) {
	client := newFakeLockClient()
	client.setErr = errors.New("connection refused")
	l := newLocker(client, "", time.Second)

	_, err := l.Acquire(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}

func TestFromCentralConfig_Defaults(t *testing.T) {
	cfg := FromCentralConfig(config.RedisConfig{Addr: "redis:6379", ReadTimeoutSeconds: 7})

	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 7*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
}
