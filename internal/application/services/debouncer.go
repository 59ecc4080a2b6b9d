package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
)

// ErrSuperseded is returned to a debounced call that a newer call from the same
// session replaced.
var ErrSuperseded = errors.New("search superseded by a newer request")

// GuardedSearcher runs a cached search that only commits to the cache while
// commit reports true.
type GuardedSearcher interface {
	CachedSearchGuarded(ctx context.Context, q entities.SearchQuery, commit func() bool) (entities.SearchResult, error)
}

// Debouncer coalesces rapid searches from one interactive session into the
// last one. Each call waits out the window; a newer call for the same session
// cancels the older one, which then returns ErrSuperseded without touching the
// cache.
type Debouncer struct {
	search GuardedSearcher
	window time.Duration

	mu       sync.Mutex
	sessions map[string]*debounceSession
}

type debounceSession struct {
	generation uint64
	cancel     context.CancelFunc
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(search GuardedSearcher, window time.Duration) *Debouncer {
	return &Debouncer{
		search:   search,
		window:   window,
		sessions: make(map[string]*debounceSession),
	}
}

// Search runs q for sessionID once no newer call has arrived within the window.
func (d *Debouncer) Search(ctx context.Context, sessionID string, q entities.SearchQuery) (entities.SearchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	generation := d.begin(sessionID, cancel)
	defer d.finish(sessionID, generation)

	if d.window > 0 {
		timer := time.NewTimer(d.window)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return entities.SearchResult{}, d.cancelled(ctx, sessionID, generation)
		}
	}

	result, err := d.search.CachedSearchGuarded(ctx, q, func() bool {
		return d.isLatest(sessionID, generation)
	})
	if !d.isLatest(sessionID, generation) {
		return entities.SearchResult{}, ErrSuperseded
	}
	if err != nil {
		return entities.SearchResult{}, err
	}
	return result, nil
}

// Pending returns the number of sessions with a call in flight.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Debouncer) begin(sessionID string, cancel context.CancelFunc) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		s = &debounceSession{}
		d.sessions[sessionID] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.cancel = cancel
	return s.generation
}

func (d *Debouncer) finish(sessionID string, generation uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sessions[sessionID]; ok && s.generation == generation {
		delete(d.sessions, sessionID)
	}
}

func (d *Debouncer) isLatest(sessionID string, generation uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	return ok && s.generation == generation
}

func (d *Debouncer) cancelled(ctx context.Context, sessionID string, generation uint64) error {
	if !d.isLatest(sessionID, generation) {
		return ErrSuperseded
	}
	return ctx.Err()
}
