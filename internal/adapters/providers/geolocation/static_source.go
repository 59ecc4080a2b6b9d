package geolocation

import (
	"context"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

// StaticSource always reports one configured position, for kiosks and fixed installations.
type StaticSource struct {
	position *providers.Position
}

// NewStaticSource creates a static source. A (0,0) coordinate is treated as unset.
func NewStaticSource(lat, lon float64) *StaticSource {
	coord, err := entities.NewCoordinate(lat, lon)
	if err != nil || (lat == 0 && lon == 0) {
		return &StaticSource{}
	}
	return &StaticSource{position: &providers.Position{Coordinate: coord, Source: "static"}}
}

func (s *StaticSource) Name() string {
	return "static"
}

func (s *StaticSource) CurrentPosition(ctx context.Context) (providers.Position, error) {
	if err := ctx.Err(); err != nil {
		return providers.Position{}, apperrors.NewTimeoutError("position request cancelled", err)
	}
	if s.position == nil {
		return providers.Position{}, apperrors.NewUnavailableError("no static position configured", nil)
	}
	return *s.position, nil
}
