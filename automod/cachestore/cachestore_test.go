package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type standing struct {
	Permissions int64
	Rank        int
}

func testCacheStore(t *testing.T, c CacheStore) {
	assert := assert.New(t)
	ctx := context.Background()

	v, err := c.Get(ctx, "standing", "g1/u1")
	assert.NoError(err)
	assert.Empty(v)

	assert.NoError(c.Set(ctx, "standing", "g1/u1", "one"))
	assert.NoError(c.Set(ctx, "invite", "g1/u1", "other"))
	v, err = c.Get(ctx, "standing", "g1/u1")
	assert.NoError(err)
	assert.Equal("one", v)

	assert.NoError(c.Purge(ctx, "standing", "g1/u1"))
	v, err = c.Get(ctx, "standing", "g1/u1")
	assert.NoError(err)
	assert.Empty(v)
	// names are separate namespaces
	v, err = c.Get(ctx, "invite", "g1/u1")
	assert.NoError(err)
	assert.Equal("other", v)

	// purging a missing key is fine
	assert.NoError(c.Purge(ctx, "standing", "nope"))

	_, ok, err := GetJSON[standing](ctx, c, "standing", "g1/u2")
	assert.NoError(err)
	assert.False(ok)
	require.NoError(t, SetJSON(ctx, c, "standing", "g1/u2", standing{Permissions: 8, Rank: 3}))
	st, ok, err := GetJSON[standing](ctx, c, "standing", "g1/u2")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(&standing{Permissions: 8, Rank: 3}, st)

	assert.NoError(c.Set(ctx, "standing", "g1/u3", "{not json"))
	_, _, err = GetJSON[standing](ctx, c, "standing", "g1/u3")
	assert.Error(err)
}

func TestMemCacheStore(t *testing.T) {
	testCacheStore(t, NewMemCacheStore(100, time.Minute, nil))
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := NewMemCacheStore(100, 20*time.Millisecond, nil)

	assert.NoError(c.Set(ctx, "standing", "g1/u1", "one"))
	assert.Eventually(func() bool {
		v, _ := c.Get(ctx, "standing", "g1/u1")
		return v == ""
	}, time.Second, 5*time.Millisecond)
}

func TestMemCacheStorePolicy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := NewMemCacheStore(2, time.Hour, TTLPolicy{DeadInviteCache: 20 * time.Millisecond})

	assert.NoError(c.Set(ctx, DeadInviteCache, "gone", "-"))
	assert.NoError(c.Set(ctx, InviteCache, "abc", "g2"))
	assert.Eventually(func() bool {
		v, _ := c.Get(ctx, DeadInviteCache, "gone")
		return v == ""
	}, time.Second, 5*time.Millisecond)
	v, err := c.Get(ctx, InviteCache, "abc")
	assert.NoError(err)
	assert.Equal("g2", v)

	// capacity is per name, so standing churn doesn't evict invites
	for _, k := range []string{"g1/u1", "g1/u2", "g1/u3"} {
		assert.NoError(c.Set(ctx, StandingCache, k, "{}"))
	}
	assert.Equal(2, c.Len(StandingCache))
	assert.Equal(1, c.Len(InviteCache))
}

func TestRedisCacheStore(t *testing.T) {
	assert := assert.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewRedisCacheStoreFromClient(rdb, time.Minute, DefaultTTLs)
	testCacheStore(t, c)

	// values land in redis under the shared prefix
	assert.NoError(c.Set(context.Background(), "standing", "g9/u9", "x"))
	assert.True(mr.Exists("warden/cache/standing/g9/u9"))

	// lifetimes follow the policy, with the store TTL as fallback
	assert.NoError(c.Set(context.Background(), InviteCache, "abc", "g2"))
	assert.NoError(c.Set(context.Background(), "other", "k", "v"))
	assert.Equal(DefaultTTLs[StandingCache], mr.TTL("warden/cache/standing/g9/u9"))
	assert.Equal(DefaultTTLs[InviteCache], mr.TTL("warden/cache/invite/abc"))
	assert.Equal(time.Minute, mr.TTL("warden/cache/other/k"))
}

func TestRedisCacheStoreURL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCacheStore("redis://"+mr.Addr(), time.Minute, nil)
	require.NoError(t, err)
	testCacheStore(t, c)

	_, err = NewRedisCacheStore("not a url", time.Minute, nil)
	assert.Error(t, err)
}
