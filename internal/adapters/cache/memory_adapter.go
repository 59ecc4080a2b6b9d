package cache

import (
	"context"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryAdapter is an in-process CacheProvider backed by an expirable LRU. The
// LRU applies one TTL to every key, so each entry also carries its own expiry
// and is treated as a miss once that has passed.
type MemoryAdapter struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryAdapter creates an in-memory cache holding at most size entries,
// none of which outlive maxTTL.
func NewMemoryAdapter(size int, maxTTL time.Duration) *MemoryAdapter {
	if size <= 0 {
		size = 1024
	}
	return &MemoryAdapter{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (m *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	if !m.now().Before(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, providers.ErrCacheMiss
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.lru.Add(key, memoryEntry{
		value:     stored,
		expiresAt: m.now().Add(time.Duration(expirationSeconds) * time.Second),
	})
	return nil
}

func (m *MemoryAdapter) Delete(ctx context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// DeletePattern supports the same glob syntax as Redis for the patterns the
// engine uses ("prefix:*").
func (m *MemoryAdapter) DeletePattern(ctx context.Context, pattern string) error {
	for _, key := range m.lru.Keys() {
		if ok, _ := path.Match(pattern, key); ok {
			m.lru.Remove(key)
		}
	}
	return nil
}

func (m *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	return err == nil, nil
}

// Len reports the number of entries currently held, expired or not.
func (m *MemoryAdapter) Len() int {
	return m.lru.Len()
}
