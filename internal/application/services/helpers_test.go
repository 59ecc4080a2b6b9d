package services_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zatekoja/facility-discovery/internal/adapters/cache"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

var bengaluru = entities.Coordinate{Latitude: 12.9716, Longitude: 77.5946}

func facility(source entities.ProviderID, id, name string, lat, lon float64) entities.Facility {
	return entities.Facility{
		ID:         string(source) + ":" + id,
		Name:       name,
		Coordinate: entities.Coordinate{Latitude: lat, Longitude: lon},
		Source:     source,
	}
}

func newMemoryCache() *cache.MemoryAdapter {
	return cache.NewMemoryAdapter(128, time.Hour)
}

// failingCache errors on every call.
type failingCache struct{}

var errCacheDown = errors.New("cache unavailable")

func (failingCache) Get(context.Context, string) ([]byte, error) { return nil, errCacheDown }
func (failingCache) Set(context.Context, string, []byte, int) error { return errCacheDown }
func (failingCache) Delete(context.Context, string) error { return errCacheDown }
func (failingCache) DeletePattern(context.Context, string) error { return errCacheDown }
func (failingCache) Exists(context.Context, string) (bool, error) { return false, errCacheDown }

// MockEventBus delivers events in process.
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.CacheEvent
	published   []*entities.CacheEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{subscribers: make(map[string][]chan *entities.CacheEvent)}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.CacheEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	for _, ch := range m.subscribers[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.CacheEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.CacheEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers[channel] {
		close(ch)
	}
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for channel, channels := range m.subscribers {
		for _, ch := range channels {
			close(ch)
		}
		delete(m.subscribers, channel)
	}
	return nil
}

func (m *MockEventBus) Published() []*entities.CacheEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.CacheEvent(nil), m.published...)
}

func (m *MockEventBus) SubscriberCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers[channel])
}

var _ providers.EventBus = (*MockEventBus)(nil)
var _ providers.CacheProvider = failingCache{}
