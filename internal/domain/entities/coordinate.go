package entities

import (
	"fmt"
	"math"

	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinate builds a validated coordinate.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate returns a validation error for out-of-range values. Values are never clamped.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return apperrors.NewValidationError("coordinate is not a number")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return apperrors.NewValidationError(fmt.Sprintf("latitude %v out of range [-90, 90]", c.Latitude))
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return apperrors.NewValidationError(fmt.Sprintf("longitude %v out of range [-180, 180]", c.Longitude))
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}
