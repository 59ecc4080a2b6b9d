package facilities

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

var errProviderUnhealthy = errors.New("provider call failed")

// BreakerAdapter short-circuits an adapter whose provider keeps failing, so an
// outage costs one fast Failed status per search instead of a full timeout.
type BreakerAdapter struct {
	next providers.FacilityAdapter
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerAdapter wraps next with a circuit that opens after consecutiveFailures
// failed or timed out calls and probes again after openTimeout.
func NewBreakerAdapter(next providers.FacilityAdapter, consecutiveFailures int, openTimeout time.Duration) *BreakerAdapter {
	if consecutiveFailures <= 0 {
		consecutiveFailures = 5
	}
	threshold := uint32(consecutiveFailures)

	settings := gobreaker.Settings{
		Name:        string(next.ID()),
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit state changed")
		},
	}

	return &BreakerAdapter{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerAdapter) ID() entities.ProviderID {
	return b.next.ID()
}

// State reports the circuit state.
func (b *BreakerAdapter) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerAdapter) Search(ctx context.Context, req providers.AdapterRequest) entities.ProviderResult {
	start := time.Now()
	out, err := b.cb.Execute(func() (interface{}, error) {
		res := b.next.Search(ctx, req)
		if errors.Is(ctx.Err(), context.Canceled) {
			// a superseded search says nothing about provider health
			return res, nil
		}
		if !res.Status.Usable() {
			return res, errProviderUnhealthy
		}
		return res, nil
	})

	if res, ok := out.(entities.ProviderResult); ok {
		return res
	}

	reason := "circuit open"
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		reason = "circuit half-open, probe in flight"
	}
	return entities.ProviderResult{
		Provider:   b.ID(),
		Facilities: []entities.Facility{},
		Status:     entities.Failed(string(providers.ProviderErrorNetwork), reason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}
