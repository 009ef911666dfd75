package lro

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Hour), mr
}

func TestRedisRememberLookup(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	c.Remember(ctx, "projects/p1/operations/op-1", "p1")
	got, ok := c.Lookup(ctx, "projects/p1/operations/op-1")
	require.True(t, ok)
	require.Equal(t, "p1", got)

	_, ok = c.Lookup(ctx, "op-unknown")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())
}

func TestRedisEntryExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	c.Remember(ctx, "op-1", "p1")
	mr.FastForward(2 * time.Hour)
	_, ok := c.Lookup(ctx, "op-1")
	require.False(t, ok)
}

func TestRedisErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	c.Remember(ctx, "op-1", "p1")
	mr.Close()
	_, ok := c.Lookup(ctx, "op-1")
	require.False(t, ok)
}
