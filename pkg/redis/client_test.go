package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/digitalrevolution/dr-backend/pkg/config"
)

func newMiniredisClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromClient(raw), srv
}

func TestSetNXHonoursExistingKeyAndTTL(t *testing.T) {
	ctx := context.Background()
	client, srv := newMiniredisClient(t)

	key := client.IdempotencyKey("stripe-webhook", "evt_1")
	require.Equal(t, "dr:idempotency:stripe-webhook:evt_1", key)

	ok, err := client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	srv.FastForward(2 * time.Hour)
	ok, err = client.SetNX(ctx, key, "1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetMissingKeyIsNil(t *testing.T) {
	client, _ := newMiniredisClient(t)
	_, err := client.Get(context.Background(), client.LockKey("cron"))
	require.True(t, IsNil(err))
}

func TestDelAndPing(t *testing.T) {
	ctx := context.Background()
	client, srv := newMiniredisClient(t)
	require.NoError(t, client.Ping(ctx))

	require.NoError(t, client.Set(ctx, "dr:lock:cron", "owner", 0))
	require.NoError(t, client.Del(ctx, "dr:lock:cron"))
	require.False(t, srv.Exists("dr:lock:cron"))
}

func TestBuildKeySkipsEmptyParts(t *testing.T) {
	client := &Client{}
	require.Equal(t, "dr:lock:cron", client.buildKey(lockPrefix, " ", "cron"))
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	require.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@localhost:6380/2", PoolSize: 7})
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
}
