package providers

import (
	"context"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
)

// Geocoder converts free text into candidate coordinates. An empty slice with a
// nil error means the provider answered and found nothing.
type Geocoder interface {
	Name() string
	Geocode(ctx context.Context, text string) ([]GeocodeMatch, error)
}

// GeocodeMatch is one candidate returned by a geocoder, best first.
type GeocodeMatch struct {
	Coordinate       entities.Coordinate `json:"coordinate"`
	FormattedAddress string              `json:"formatted_address,omitempty"`
	Provider         string              `json:"provider"`
}

// PositionSource acquires the current position of the caller's device.
// Implementations must return promptly once ctx is done.
type PositionSource interface {
	Name() string
	CurrentPosition(ctx context.Context) (Position, error)
}

// Position is a location fix. AccuracyM is the radius of uncertainty in meters;
// zero means the source did not report one.
type Position struct {
	Coordinate entities.Coordinate `json:"coordinate"`
	AccuracyM  float64             `json:"accuracy_m,omitempty"`
	Source     string              `json:"source"`
}

type clientIPKey struct{}

// WithClientIP records the caller's address for IP-based position sources.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the caller's address, or "" when unknown.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
