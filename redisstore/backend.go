// Package redisstore implements jobstatus.Backend on Redis. Records are
// plain string keys with TTL, the chronological index is a Sorted Set and
// the kill list is a Set, so external readers can inspect the same keys.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := jobstatus.NewStore(redisstore.New(client))
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is a Redis-backed key-value backend. The caller owns the client
// lifecycle.
type Backend struct {
	client redis.Cmdable
}

// New creates a backend on top of client.
func New(client redis.Cmdable) *Backend {
	return &Backend{client: client}
}

// Client returns the underlying Redis client.
func (b *Backend) Client() redis.Cmdable { return b.client }

// Ping verifies the Redis connection is alive.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: get: %w", err)
	}
	return val, true, nil
}

func (b *Backend) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: mget: %w", err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		switch s := v.(type) {
		case string:
			out[i] = []byte(s)
		case []byte:
			out[i] = s
		}
	}
	return out, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set: %w", err)
	}
	return nil
}

func (b *Backend) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redisstore: del: %w", err)
	}
	return nil
}

func (b *Backend) ZAdd(ctx context.Context, key, member string, score float64) error {
	if err := b.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("redisstore: zadd: %w", err)
	}
	return nil
}

func (b *Backend) ZRem(ctx context.Context, key, member string) error {
	if err := b.client.ZRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redisstore: zrem: %w", err)
	}
	return nil
}

func (b *Backend) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	err := b.client.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err()
	if err != nil {
		return fmt.Errorf("redisstore: zremrangebyscore: %w", err)
	}
	return nil
}

func (b *Backend) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ids, err := b.client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: zrevrange: %w", err)
	}
	return ids, nil
}

func (b *Backend) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := b.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: zcard: %w", err)
	}
	return n, nil
}

func (b *Backend) SAdd(ctx context.Context, key, member string) error {
	if err := b.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redisstore: sadd: %w", err)
	}
	return nil
}

func (b *Backend) SRem(ctx context.Context, key, member string) error {
	if err := b.client.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redisstore: srem: %w", err)
	}
	return nil
}

func (b *Backend) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := b.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: sismember: %w", err)
	}
	return ok, nil
}

func (b *Backend) SMembers(ctx context.Context, key string) ([]string, error) {
	ids, err := b.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: smembers: %w", err)
	}
	return ids, nil
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
