package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestBackend_GetSetDel(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	val, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, b.Del(ctx, "k", "missing"))
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackend_SetWithTTL(t *testing.T) {
	b, mr := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Second))
	assert.Equal(t, time.Second, mr.TTL("k"))

	mr.FastForward(2 * time.Second)
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackend_MGetKeepsOrder(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, b.Set(ctx, "c", []byte("3"), 0))

	vals, err := b.MGet(ctx, "a", "b", "c")
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, []byte("1"), vals[0])
	assert.Nil(t, vals[1])
	assert.Equal(t, []byte("3"), vals[2])
}

func TestBackend_SortedSet(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	for i, m := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.ZAdd(ctx, "z", m, float64(10+i)))
	}

	n, err := b.ZCard(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	all, err := b.ZRevRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, all)

	page, err := b.ZRevRange(ctx, "z", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, page)

	require.NoError(t, b.ZRemRangeByScore(ctx, "z", 0, 11))
	require.NoError(t, b.ZRem(ctx, "z", "d"))

	rest, err := b.ZRevRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, rest)
}

func TestBackend_Set(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SAdd(ctx, "s", "x"))
	require.NoError(t, b.SAdd(ctx, "s", "x"))
	require.NoError(t, b.SAdd(ctx, "s", "y"))

	ok, err := b.SIsMember(ctx, "s", "x")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := b.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, members)

	require.NoError(t, b.SRem(ctx, "s", "x"))
	require.NoError(t, b.SRem(ctx, "s", "x"))
	ok, err = b.SIsMember(ctx, "s", "x")
	require.NoError(t, err)
	assert.False(t, ok)
}
