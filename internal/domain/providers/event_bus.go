package providers

import (
	"context"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to cache events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.CacheEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.CacheEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelCache carries cache clear and invalidation events between instances.
const EventChannelCache = "discovery:cache"
