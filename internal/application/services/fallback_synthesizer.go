package services

import (
	"fmt"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/pkg/geo"
)

const defaultSyntheticCount = 3

// FallbackSynthesizer produces placeholder facilities when no provider returned
// any data. Placeholders carry Synthetic=true and Source=synthetic and are
// rejected by entities.BookingReference.
type FallbackSynthesizer struct {
	count int
}

// NewFallbackSynthesizer creates a synthesizer producing count placeholders.
func NewFallbackSynthesizer(count int) *FallbackSynthesizer {
	if count <= 0 {
		count = defaultSyntheticCount
	}
	return &FallbackSynthesizer{count: count}
}

// Synthesize places the placeholders evenly around origin at half the search
// radius. The output is a pure function of its inputs.
func (s *FallbackSynthesizer) Synthesize(origin entities.Coordinate, radiusKm float64) []entities.Facility {
	distance := radiusKm / 2
	out := make([]entities.Facility, 0, s.count)
	for i := 0; i < s.count; i++ {
		bearing := float64(i) * 360 / float64(s.count)
		lat, lon := geo.Destination(origin.Latitude, origin.Longitude, bearing, distance)

		out = append(out, entities.Facility{
			ID:   fmt.Sprintf("synthetic:%.4f,%.4f:%d", origin.Latitude, origin.Longitude, i+1),
			Name: fmt.Sprintf("Unverified facility %d (providers unavailable)", i+1),
			Coordinate: entities.Coordinate{
				Latitude:  lat,
				Longitude: lon,
			},
			Address: entities.Address{
				Text: "Approximate placeholder; confirm locally before visiting",
			},
			Source:    entities.ProviderSynthetic,
			Synthetic: true,
		})
	}
	return out
}
