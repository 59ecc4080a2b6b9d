package facilities

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

// MockAdapter returns canned facilities after an optional delay, for tests.
type MockAdapter struct {
	Provider   entities.ProviderID
	Facilities []entities.Facility
	Status     entities.ProviderStatus
	Delay      time.Duration

	calls atomic.Int32
}

// NewMockAdapter creates a mock adapter that answers Ok with facilities
func NewMockAdapter(id entities.ProviderID, facilities ...entities.Facility) *MockAdapter {
	return &MockAdapter{Provider: id, Facilities: facilities, Status: entities.Ok()}
}

// NewHangingAdapter creates a mock adapter that only returns once its context is done
func NewHangingAdapter(id entities.ProviderID) *MockAdapter {
	return &MockAdapter{Provider: id, Status: entities.Ok(), Delay: time.Hour}
}

func (m *MockAdapter) ID() entities.ProviderID {
	return m.Provider
}

// Calls returns how many times Search was invoked.
func (m *MockAdapter) Calls() int {
	return int(m.calls.Load())
}

func (m *MockAdapter) Search(ctx context.Context, req providers.AdapterRequest) entities.ProviderResult {
	m.calls.Add(1)
	start := time.Now()

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()

		var deadline <-chan time.Time
		if req.Timeout > 0 {
			deadline = time.After(req.Timeout)
		}
		select {
		case <-timer.C:
		case <-deadline:
			return m.result(nil, entities.TimedOut(), start)
		case <-ctx.Done():
			return m.result(nil, entities.TimedOut(), start)
		}
	}

	status := m.Status
	if status.Kind == "" {
		status = entities.Ok()
	}
	if !status.Usable() {
		return m.result(nil, status, start)
	}
	out := make([]entities.Facility, len(m.Facilities))
	for i, f := range m.Facilities {
		out[i] = f.Clone()
	}
	return m.result(out, status, start)
}

func (m *MockAdapter) result(facilities []entities.Facility, status entities.ProviderStatus, start time.Time) entities.ProviderResult {
	if facilities == nil {
		facilities = []entities.Facility{}
	}
	return entities.ProviderResult{
		Provider:   m.Provider,
		Facilities: facilities,
		Status:     status,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}
