package geolocation

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

// MockGeocoder resolves a fixed set of place names, for tests and offline runs.
type MockGeocoder struct {
	NameValue string
	Places    map[string]entities.Coordinate
	Err       error

	calls atomic.Int32
}

// NewMockGeocoder creates a mock geocoder seeded with a few well-known cities
func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{
		NameValue: "mock",
		Places: map[string]entities.Coordinate{
			"bengaluru": {Latitude: 12.9716, Longitude: 77.5946},
			"lagos":     {Latitude: 6.5244, Longitude: 3.3792},
			"abuja":     {Latitude: 9.0765, Longitude: 7.3986},
			"new york":  {Latitude: 40.7128, Longitude: -74.0060},
		},
	}
}

func (m *MockGeocoder) Name() string {
	return m.NameValue
}

// Calls returns how many times Geocode was invoked.
func (m *MockGeocoder) Calls() int {
	return int(m.calls.Load())
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) ([]providers.GeocodeMatch, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}

	lowered := strings.ToLower(address)
	for place, coord := range m.Places {
		if strings.Contains(lowered, place) {
			return []providers.GeocodeMatch{{Coordinate: coord, FormattedAddress: place, Provider: m.NameValue}}, nil
		}
	}
	return []providers.GeocodeMatch{}, nil
}

// MockPositionSource returns a canned position or error after an optional delay.
type MockPositionSource struct {
	Position providers.Position
	Err      error
	Delay    time.Duration
}

func (m *MockPositionSource) Name() string {
	return "mock"
}

func (m *MockPositionSource) CurrentPosition(ctx context.Context) (providers.Position, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return providers.Position{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return providers.Position{}, m.Err
	}
	return m.Position, nil
}
