package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	redisclient "github.com/zatekoja/facility-discovery/internal/infrastructure/clients/redis"
)

func newRedisAdapter(t *testing.T) (*RedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisAdapter(redisclient.Wrap(rdb)), mr
}

func TestRedisAdapter_SetGetExpire(t *testing.T) {
	adapter, mr := newRedisAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "discovery:search:v1:abc", []byte(`{"degraded":false}`), 60))

	got, err := adapter.Get(ctx, "discovery:search:v1:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"degraded":false}`, string(got))

	mr.FastForward(61 * time.Second)
	_, err = adapter.Get(ctx, "discovery:search:v1:abc")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}

func TestRedisAdapter_DeletePattern(t *testing.T) {
	adapter, mr := newRedisAdapter(t)
	ctx := context.Background()

	for i := 0; i < 450; i++ {
		require.NoError(t, adapter.Set(ctx, fmt.Sprintf("discovery:search:v1:%03d", i), []byte("x"), 60))
	}
	require.NoError(t, adapter.Set(ctx, "geo:v3:geocode:keep", []byte("y"), 60))

	require.NoError(t, adapter.DeletePattern(ctx, "discovery:search:*"))

	assert.Equal(t, []string{"geo:v3:geocode:keep"}, mr.Keys())
	exists, err := adapter.Exists(ctx, "geo:v3:geocode:keep")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedisAdapter_ConnectionErrorIsNotAMiss(t *testing.T) {
	adapter, mr := newRedisAdapter(t)
	mr.Close()

	_, err := adapter.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrCacheMiss)
}

func TestMemoryAdapter_PerEntryExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMemoryAdapter(10, time.Hour)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("1"), 30))
	require.NoError(t, m.Set(ctx, "long", []byte("2"), 600))

	now = now.Add(time.Minute)
	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	got, err := m.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestMemoryAdapter_ReturnsCopies(t *testing.T) {
	m := NewMemoryAdapter(10, time.Hour)
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value, 60))
	value[0] = 'z'

	got, _ := m.Get(ctx, "k")
	got[1] = 'z'

	again, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryAdapter_EvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemoryAdapter(2, time.Hour)
	ctx := context.Background()
	_ = m.Set(ctx, "a", []byte("1"), 60)
	_ = m.Set(ctx, "b", []byte("2"), 60)
	_, _ = m.Get(ctx, "a")
	_ = m.Set(ctx, "c", []byte("3"), 60)

	ok, _ := m.Exists(ctx, "b")
	assert.False(t, ok)
	ok, _ = m.Exists(ctx, "a")
	assert.True(t, ok)
}

func TestMemoryAdapter_DeletePattern(t *testing.T) {
	m := NewMemoryAdapter(10, time.Hour)
	ctx := context.Background()
	_ = m.Set(ctx, "discovery:search:v1:1", []byte("1"), 60)
	_ = m.Set(ctx, "discovery:search:v1:2", []byte("2"), 60)
	_ = m.Set(ctx, "geo:v3:geocode:1", []byte("3"), 60)

	require.NoError(t, m.DeletePattern(ctx, "discovery:search:*"))
	assert.Equal(t, 1, m.Len())
}

func TestLayeredAdapter_FillsLocalFromShared(t *testing.T) {
	shared, mr := newRedisAdapter(t)
	local := NewMemoryAdapter(10, time.Hour)
	layered := NewLayeredAdapter(local, shared, 30)
	ctx := context.Background()

	require.NoError(t, mr.Set("discovery:search:v1:k", "payload"))

	got, err := layered.Get(ctx, "discovery:search:v1:k")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	// served from memory even after the shared copy disappears
	mr.Del("discovery:search:v1:k")
	got, err = layered.Get(ctx, "discovery:search:v1:k")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, layered.DeletePattern(ctx, "discovery:search:*"))
	_, err = layered.Get(ctx, "discovery:search:v1:k")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}
