package entities

import (
	"time"

	"github.com/google/uuid"
)

// CacheEventType represents the kind of cache event broadcast between instances
type CacheEventType string

const (
	CacheEventTypeCleared     CacheEventType = "cache.cleared"
	CacheEventTypeInvalidated CacheEventType = "cache.invalidated"
)

// CacheEvent tells other engine instances to drop cached search results.
// Pattern is empty for a full clear.
type CacheEvent struct {
	ID        string         `json:"id"`
	Type      CacheEventType `json:"type"`
	Pattern   string         `json:"pattern,omitempty"`
	Origin    string         `json:"origin"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewCacheEvent creates a new cache event emitted by the instance named origin
func NewCacheEvent(eventType CacheEventType, pattern, origin string) *CacheEvent {
	return &CacheEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Pattern:   pattern,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}
}
