package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

// CacheInvalidationService drops this instance's in-process cache entries when
// another instance clears or invalidates the shared cache.
type CacheInvalidationService struct {
	local      providers.CacheProvider
	eventBus   providers.EventBus
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	started    atomic.Bool
}

// NewCacheInvalidationService creates a new cache invalidation service. local is
// the in-process cache level; events published by instanceID itself are ignored.
func NewCacheInvalidationService(local providers.CacheProvider, eventBus providers.EventBus, instanceID string) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		local:      local,
		eventBus:   eventBus,
		instanceID: instanceID,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start begins listening for cache events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelCache)
	if err != nil {
		return fmt.Errorf("failed to subscribe to cache events: %w", err)
	}

	s.started.Store(true)
	go s.processEvents(eventChan)
	log.Info().Str("channel", providers.EventChannelCache).Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started.Load() {
		<-s.done
	}
	log.Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.CacheEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.CacheEvent) {
	if event.Origin != "" && event.Origin == s.instanceID {
		return
	}

	pattern := event.Pattern
	switch event.Type {
	case entities.CacheEventTypeCleared:
		if pattern == "" {
			pattern = searchCachePattern
		}
	case entities.CacheEventTypeInvalidated:
		if pattern == "" {
			return
		}
	default:
		log.Warn().Str("type", string(event.Type)).Msg("Ignoring unknown cache event")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.local.DeletePattern(ctx, pattern); err != nil {
		log.Warn().Err(err).Str("pattern", pattern).Msg("Failed to drop local cache entries")
		return
	}
	log.Info().
		Str("event_id", event.ID).
		Str("origin", event.Origin).
		Str("pattern", pattern).
		Msg("Dropped local cache entries")
}
