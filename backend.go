package jobstatus

import (
	"context"
	"time"
)

// Backend is the primitive key-value contract the Store is built on: plain
// values with optional TTL, a sorted set and a set. Implementations must be
// safe for concurrent use. See the redisstore and sqlstore packages.
type Backend interface {
	// Get returns the value at key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// MGet returns the values at keys in order, nil for missing keys.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	// Set stores value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error

	// ZAdd adds or updates member with score.
	ZAdd(ctx context.Context, key, member string, score float64) error
	// ZRem removes member.
	ZRem(ctx context.Context, key, member string) error
	// ZRemRangeByScore removes members with min <= score <= max.
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	// ZRevRange returns members by rank, highest score first. start and stop
	// are inclusive offsets; stop -1 means the last member.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZCard returns the number of members.
	ZCard(ctx context.Context, key string) (int64, error)

	// SAdd adds member to the set.
	SAdd(ctx context.Context, key, member string) error
	// SRem removes member from the set.
	SRem(ctx context.Context, key, member string) error
	// SIsMember reports whether member is in the set.
	SIsMember(ctx context.Context, key, member string) (bool, error)
	// SMembers lists the set.
	SMembers(ctx context.Context, key string) ([]string, error)
}
