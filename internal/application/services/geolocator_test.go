package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-discovery/internal/adapters/providers/geolocation"
	"github.com/zatekoja/facility-discovery/internal/application/services"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

// stubbornSource ignores its context entirely.
type stubbornSource struct {
	sleep time.Duration
}

func (s stubbornSource) Name() string { return "stubborn" }

func (s stubbornSource) CurrentPosition(ctx context.Context) (providers.Position, error) {
	time.Sleep(s.sleep)
	return providers.Position{Coordinate: bengaluru}, nil
}

func TestGeolocator_CurrentLocation(t *testing.T) {
	source := &geolocation.MockPositionSource{
		Position: providers.Position{Coordinate: bengaluru, AccuracyM: 40, Source: "mock"},
	}
	g := services.NewGeolocator(source, 1000, time.Second)

	coord, err := g.CurrentLocation(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, bengaluru, coord)
}

func TestGeolocator_RejectsImpreciseFix(t *testing.T) {
	source := &geolocation.MockPositionSource{
		Position: providers.Position{Coordinate: bengaluru, AccuracyM: 10000},
	}
	g := services.NewGeolocator(source, 500, time.Second)

	_, err := g.CurrentLocation(context.Background(), time.Second)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable), "got %v", err)
}

func TestGeolocator_PassesThroughPermissionDenied(t *testing.T) {
	source := &geolocation.MockPositionSource{Err: apperrors.NewPermissionDeniedError("user declined location access")}
	g := services.NewGeolocator(source, 0, time.Second)

	_, err := g.CurrentLocation(context.Background(), time.Second)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePermissionDenied))
}

func TestGeolocator_UnknownErrorIsUnavailable(t *testing.T) {
	source := &geolocation.MockPositionSource{Err: assert.AnError}
	g := services.NewGeolocator(source, 0, time.Second)

	_, err := g.CurrentLocation(context.Background(), time.Second)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGeolocator_InvalidCoordinateIsUnavailable(t *testing.T) {
	source := &geolocation.MockPositionSource{
		Position: providers.Position{Coordinate: entities.Coordinate{Latitude: 91, Longitude: 0}},
	}
	g := services.NewGeolocator(source, 0, time.Second)

	_, err := g.CurrentLocation(context.Background(), time.Second)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
}

func TestGeolocator_HangingSourceTimesOut(t *testing.T) {
	source := &geolocation.MockPositionSource{Delay: time.Hour}
	g := services.NewGeolocator(source, 0, time.Minute)

	start := time.Now()
	_, err := g.CurrentLocation(context.Background(), 50*time.Millisecond)

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGeolocator_SourceIgnoringContextStillTimesOut(t *testing.T) {
	g := services.NewGeolocator(stubbornSource{sleep: 2 * time.Second}, 0, time.Minute)

	start := time.Now()
	_, err := g.CurrentLocation(context.Background(), 50*time.Millisecond)

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func TestGeolocator_NoSource(t *testing.T) {
	g := services.NewGeolocator(nil, 0, 0)
	_, err := g.CurrentLocation(context.Background(), time.Second)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
}
