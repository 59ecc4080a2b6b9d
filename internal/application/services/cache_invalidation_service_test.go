package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-discovery/internal/adapters/cache"
	"github.com/zatekoja/facility-discovery/internal/application/services"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

func seedLocal(t *testing.T, keys ...string) *cache.MemoryAdapter {
	t.Helper()
	local := newMemoryCache()
	for _, key := range keys {
		require.NoError(t, local.Set(context.Background(), key, []byte(`{}`), 60))
	}
	return local
}

func startInvalidation(t *testing.T, local providers.CacheProvider, bus *MockEventBus) *services.CacheInvalidationService {
	t.Helper()
	svc := services.NewCacheInvalidationService(local, bus, "api-2")
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)
	return svc
}

func TestCacheInvalidationService_Start(t *testing.T) {
	bus := NewMockEventBus()
	startInvalidation(t, newMemoryCache(), bus)

	assert.Equal(t, 1, bus.SubscriberCount(providers.EventChannelCache))
}

func TestCacheInvalidationService_ClearedEventFromPeerDropsLocalEntries(t *testing.T) {
	local := seedLocal(t, "discovery:search:v1:aaa", "discovery:search:v1:bbb", "geo:v3:geocode:ccc")
	bus := NewMockEventBus()
	startInvalidation(t, local, bus)

	event := entities.NewCacheEvent(entities.CacheEventTypeCleared, "discovery:search:*", "api-1")
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCache, event))

	assert.Eventually(t, func() bool { return local.Len() == 1 }, time.Second, 10*time.Millisecond)
	ok, err := local.Exists(context.Background(), "geo:v3:geocode:ccc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheInvalidationService_ClearedEventWithoutPatternUsesSearchKeys(t *testing.T) {
	local := seedLocal(t, "discovery:search:v1:aaa", "geo:v3:geocode:ccc")
	bus := NewMockEventBus()
	startInvalidation(t, local, bus)

	event := entities.NewCacheEvent(entities.CacheEventTypeCleared, "", "api-1")
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCache, event))

	assert.Eventually(t, func() bool { return local.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestCacheInvalidationService_IgnoresOwnEvents(t *testing.T) {
	local := seedLocal(t, "discovery:search:v1:aaa")
	bus := NewMockEventBus()
	startInvalidation(t, local, bus)

	own := entities.NewCacheEvent(entities.CacheEventTypeCleared, "discovery:search:*", "api-2")
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCache, own))
	// a later peer event with a disjoint pattern proves the first was processed
	peer := entities.NewCacheEvent(entities.CacheEventTypeInvalidated, "other:*", "api-1")
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCache, peer))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, local.Len())
}

func TestCacheInvalidationService_InvalidatedEventUsesPattern(t *testing.T) {
	local := seedLocal(t, "discovery:search:v1:aaa", "geo:v3:geocode:ccc", "geo:v3:geocode:ddd")
	bus := NewMockEventBus()
	startInvalidation(t, local, bus)

	event := entities.NewCacheEvent(entities.CacheEventTypeInvalidated, "geo:v3:geocode:*", "api-1")
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCache, event))

	assert.Eventually(t, func() bool { return local.Len() == 1 }, time.Second, 10*time.Millisecond)
	ok, err := local.Exists(context.Background(), "discovery:search:v1:aaa")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheInvalidationService_StopWithoutStart(t *testing.T) {
	svc := services.NewCacheInvalidationService(newMemoryCache(), NewMockEventBus(), "api-2")

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without Start")
	}
}
