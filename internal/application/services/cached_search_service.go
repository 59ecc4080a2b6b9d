package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
	"github.com/zatekoja/facility-discovery/pkg/geo"
)

const (
	searchCachePrefix  = "discovery:search:v1:"
	searchCachePattern = "discovery:search:*"
)

// Searcher runs a facility search.
type Searcher interface {
	Search(ctx context.Context, q entities.SearchQuery) (entities.SearchResult, error)
}

// CachedSearchConfig controls the query cache.
type CachedSearchConfig struct {
	TTL          time.Duration
	KeyPrecision int
	// InstanceID tags published cache events so an instance can ignore its own.
	InstanceID string
}

// CachedSearchService wraps a Searcher with a short-TTL query cache. Concurrent
// misses for the same key share one search.
type CachedSearchService struct {
	search   Searcher
	cache    providers.CacheProvider
	eventBus providers.EventBus
	cfg      CachedSearchConfig
	metrics  *observability.Metrics
	group    singleflight.Group
	now      func() time.Time
}

// NewCachedSearchService creates a cached search service. eventBus and metrics may be nil.
func NewCachedSearchService(
	search Searcher,
	cache providers.CacheProvider,
	eventBus providers.EventBus,
	cfg CachedSearchConfig,
	metrics *observability.Metrics,
) *CachedSearchService {
	return &CachedSearchService{
		search:   search,
		cache:    cache,
		eventBus: eventBus,
		cfg:      cfg,
		metrics:  metrics,
		now:      time.Now,
	}
}

// CachedSearch returns the cached result for q when one is live, otherwise runs
// the search and caches a non-degraded result.
func (s *CachedSearchService) CachedSearch(ctx context.Context, q entities.SearchQuery) (entities.SearchResult, error) {
	return s.cachedSearch(ctx, q, nil)
}

// Search lets the cached service stand in for a plain Searcher.
func (s *CachedSearchService) Search(ctx context.Context, q entities.SearchQuery) (entities.SearchResult, error) {
	return s.cachedSearch(ctx, q, nil)
}

// CachedSearchGuarded is CachedSearch with a commit guard: the result is written
// to the cache only if commit still reports true once the search has finished.
func (s *CachedSearchService) CachedSearchGuarded(ctx context.Context, q entities.SearchQuery, commit func() bool) (entities.SearchResult, error) {
	return s.cachedSearch(ctx, q, commit)
}

func (s *CachedSearchService) cachedSearch(ctx context.Context, q entities.SearchQuery, commit func() bool) (entities.SearchResult, error) {
	key := s.CacheKey(q)

	if result, ok := s.Lookup(ctx, key); ok {
		observability.RecordCacheHit(ctx, s.metrics, "search")
		return result, nil
	}
	observability.RecordCacheMiss(ctx, s.metrics, "search")

	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.fill(ctx, key, q, commit)
	})

	select {
	case <-ctx.Done():
		return entities.SearchResult{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			// the shared search belonged to a caller that went away
			if errors.Is(r.Err, context.Canceled) && ctx.Err() == nil {
				return s.fill(ctx, key, q, commit)
			}
			return entities.SearchResult{}, r.Err
		}
		return r.Val.(entities.SearchResult).Clone(), nil
	}
}

func (s *CachedSearchService) fill(ctx context.Context, key string, q entities.SearchQuery, commit func() bool) (entities.SearchResult, error) {
	result, err := s.search.Search(ctx, q)
	if err != nil {
		return entities.SearchResult{}, err
	}
	if result.Degraded || ctx.Err() != nil {
		return result, nil
	}
	if commit != nil && !commit() {
		return result, nil
	}
	s.Store(ctx, key, result)
	return result, nil
}

// CacheKey quantizes the origin to the configured precision and keeps the
// radius, filters and sort verbatim.
func (s *CachedSearchService) CacheKey(q entities.SearchQuery) string {
	p := s.cfg.KeyPrecision
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = entities.SortByDistance
	}
	canonical := strings.Join([]string{
		strconv.FormatFloat(geo.Round(q.Origin.Latitude, p), 'f', p, 64),
		strconv.FormatFloat(geo.Round(q.Origin.Longitude, p), 'f', p, 64),
		strconv.FormatFloat(q.RadiusKm, 'g', -1, 64),
		strconv.FormatBool(q.Filters.EmergencyOnly),
		string(q.Filters.Ownership),
		q.Filters.Specialty,
		string(sortBy),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return searchCachePrefix + hex.EncodeToString(sum[:])
}

// Lookup returns the live entry stored under key. Cache errors are logged and
// treated as misses.
func (s *CachedSearchService) Lookup(ctx context.Context, key string) (entities.SearchResult, bool) {
	if s.cache == nil || s.cfg.TTL <= 0 {
		return entities.SearchResult{}, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Search cache read failed")
		}
		return entities.SearchResult{}, false
	}

	var entry entities.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Discarding unreadable search cache entry")
		return entities.SearchResult{}, false
	}
	if entry.Key != key || entry.Expired(s.now()) {
		return entities.SearchResult{}, false
	}
	return entry.Value, true
}

// Store writes result under key as one value, so readers see either the old
// entry or the new one.
func (s *CachedSearchService) Store(ctx context.Context, key string, result entities.SearchResult) {
	if s.cache == nil || s.cfg.TTL <= 0 {
		return
	}
	ttlSeconds := int(s.cfg.TTL / time.Second)
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}

	entry := entities.CacheEntry{
		Key:       key,
		Value:     result,
		ExpiresAt: s.now().Add(s.cfg.TTL).UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to encode search cache entry")
		return
	}
	if err := s.cache.Set(ctx, key, data, ttlSeconds); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Search cache write failed")
	}
}

// Clear drops every cached search result and tells other instances to do the same.
func (s *CachedSearchService) Clear(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeletePattern(ctx, searchCachePattern); err != nil {
		return fmt.Errorf("failed to clear search cache: %w", err)
	}
	observability.LoggerFromContext(ctx).Info().Str("pattern", searchCachePattern).Msg("Search cache cleared")
	s.publish(ctx, entities.CacheEventTypeCleared, searchCachePattern)
	return nil
}

// Invalidate drops every key matching pattern from the shared cache and tells
// other instances to drop it from their local level.
func (s *CachedSearchService) Invalidate(ctx context.Context, pattern string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", pattern, err)
	}
	observability.LoggerFromContext(ctx).Info().Str("pattern", pattern).Msg("Cache entries invalidated")
	s.publish(ctx, entities.CacheEventTypeInvalidated, pattern)
	return nil
}

func (s *CachedSearchService) publish(ctx context.Context, eventType entities.CacheEventType, pattern string) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewCacheEvent(eventType, pattern, s.cfg.InstanceID)
	if err := s.eventBus.Publish(ctx, providers.EventChannelCache, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("type", string(eventType)).Msg("Failed to publish cache event")
	}
}
