package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisDeduper_SeenAndRecord(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	d := NewRedisDeduperWithClient(client, time.Minute)

	dup, err := d.SeenAndRecord(ctx, "id:1")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.True(t, mr.Exists(dedupeKeyPrefix+"id:1"))
	assert.Equal(t, int64(1), d.Size())

	dup, err = d.SeenAndRecord(ctx, "id:1")
	require.NoError(t, err)
	assert.True(t, dup)

	// A second instance sharing the server sees the key too.
	other := NewRedisDeduperWithClient(client, time.Minute)
	dup, err = other.SeenAndRecord(ctx, "id:1")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestRedisDeduper_TTLAndUnrecord(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	d := NewRedisDeduperWithClient(client, time.Minute)

	_, err := d.SeenAndRecord(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	dup, err := d.SeenAndRecord(ctx, "k")
	require.NoError(t, err)
	assert.False(t, dup, "expired keys are accepted again")

	require.NoError(t, d.Unrecord(ctx, "k"))
	assert.False(t, mr.Exists(dedupeKeyPrefix+"k"))
	dup, err = d.SeenAndRecord(ctx, "k")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestRedisDeduper_Connect(t *testing.T) {
	mr := miniredis.RunT(t)

	d, err := NewRedisDeduper(context.Background(), mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer d.Close()

	d2, err := NewRedisDeduper(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	require.NoError(t, err)
	defer d2.Close()
	require.NoError(t, d2.Ping(context.Background()))

	mr.Close()
	_, err = d.SeenAndRecord(context.Background(), "x")
	assert.Error(t, err)
	assert.Error(t, d.Ping(context.Background()))
}
