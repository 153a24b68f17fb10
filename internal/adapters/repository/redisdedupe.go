package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/crmflow/internal/domain/dedupe"
)

const dedupeKeyPrefix = "crmflow:dedupe:"

// RedisDeduper shares delivery keys between instances through Redis.
// Keys expire after ttl so the keyspace stays bounded.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	size   atomic.Int64 // keys recorded by this instance
}

var _ dedupe.Deduper = (*RedisDeduper)(nil)

// NewRedisDeduper connects to addr (host:port or a redis:// URL) and pings it.
func NewRedisDeduper(ctx context.Context, addr string, ttl time.Duration) (*RedisDeduper, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisDeduperWithClient(client, ttl), nil
}

// NewRedisDeduperWithClient uses an existing client.
func NewRedisDeduperWithClient(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// SeenAndRecord sets the key only if absent, so concurrent instances agree
// on a single winner.
func (r *RedisDeduper) SeenAndRecord(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, dedupeKeyPrefix+key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		r.size.Add(1)
	}
	return !ok, nil
}

func (r *RedisDeduper) Unrecord(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, dedupeKeyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	r.size.Add(-n)
	return nil
}

func (r *RedisDeduper) Size() int64 {
	return r.size.Load()
}

// Ping checks the connection.
func (r *RedisDeduper) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisDeduper) Close() error {
	return r.client.Close()
}
