package cache

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

// LayeredAdapter keeps a short-lived in-process copy (L1) in front of a shared
// cache (L2). Other instances drop their L1 copies when a cache event arrives.
type LayeredAdapter struct {
	local     *MemoryAdapter
	shared    providers.CacheProvider
	localTTLs int
}

// NewLayeredAdapter creates a two-level cache. localTTLSeconds caps how long an
// entry read from the shared cache is served from memory.
func NewLayeredAdapter(local *MemoryAdapter, shared providers.CacheProvider, localTTLSeconds int) *LayeredAdapter {
	return &LayeredAdapter{local: local, shared: shared, localTTLs: localTTLSeconds}
}

// Local exposes the in-process level for event-driven invalidation.
func (l *LayeredAdapter) Local() *MemoryAdapter {
	return l.local
}

func (l *LayeredAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if value, err := l.local.Get(ctx, key); err == nil {
		return value, nil
	}
	value, err := l.shared.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = l.local.Set(ctx, key, value, l.localTTLs)
	return value, nil
}

func (l *LayeredAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	ttl := expirationSeconds
	if ttl > l.localTTLs {
		ttl = l.localTTLs
	}
	_ = l.local.Set(ctx, key, value, ttl)
	return l.shared.Set(ctx, key, value, expirationSeconds)
}

func (l *LayeredAdapter) Delete(ctx context.Context, key string) error {
	_ = l.local.Delete(ctx, key)
	return l.shared.Delete(ctx, key)
}

func (l *LayeredAdapter) DeletePattern(ctx context.Context, pattern string) error {
	_ = l.local.DeletePattern(ctx, pattern)
	return l.shared.DeletePattern(ctx, pattern)
}

func (l *LayeredAdapter) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := l.local.Exists(ctx, key); ok {
		return true, nil
	}
	ok, err := l.shared.Exists(ctx, key)
	if err != nil && !errors.Is(err, providers.ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("shared cache existence check failed")
	}
	return ok, err
}
