package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-discovery/internal/adapters/providers/geolocation"
	"github.com/zatekoja/facility-discovery/internal/application/services"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

func TestParseCoordinatePair(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want entities.Coordinate
	}{
		{"12.9716, 77.5946", true, entities.Coordinate{Latitude: 12.9716, Longitude: 77.5946}},
		{"12.9716 77.5946", true, entities.Coordinate{Latitude: 12.9716, Longitude: 77.5946}},
		{"  -33.8688,151.2093 ", true, entities.Coordinate{Latitude: -33.8688, Longitude: 151.2093}},
		{"+40.7128 , -74.0060", true, entities.Coordinate{Latitude: 40.7128, Longitude: -74.006}},
		{"6 3", true, entities.Coordinate{Latitude: 6, Longitude: 3}},
		{"221B Baker Street 2", false, entities.Coordinate{}},
		{"12.9716, 77.5946, 5", false, entities.Coordinate{}},
		{"12.9716,", false, entities.Coordinate{}},
		{"MG Road 12, Bengaluru 560001", false, entities.Coordinate{}},
		{"12.97N 77.59E", false, entities.Coordinate{}},
		{"1e3, 5", false, entities.Coordinate{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok, err := services.ParseCoordinatePair(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCoordinatePair_OutOfRangeIsValidationError(t *testing.T) {
	_, ok, err := services.ParseCoordinatePair("95.0, 10")
	assert.True(t, ok)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, ok, err = services.ParseCoordinatePair("45, -181")
	assert.True(t, ok)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestGeocodingService_CoordinateBypassSkipsProviders(t *testing.T) {
	geocoder := geolocation.NewMockGeocoder()
	svc := services.NewGeocodingService(newMemoryCache(), time.Second, geocoder)

	coord, err := svc.Resolve(context.Background(), "12.9716, 77.5946")

	require.NoError(t, err)
	assert.Equal(t, entities.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, coord)
	assert.Equal(t, 0, geocoder.Calls())
}

func TestGeocodingService_OutOfRangePairIsNotGeocoded(t *testing.T) {
	geocoder := geolocation.NewMockGeocoder()
	svc := services.NewGeocodingService(nil, time.Second, geocoder)

	_, err := svc.Resolve(context.Background(), "120, 77.5")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, geocoder.Calls())
}

func TestGeocodingService_EmptyText(t *testing.T) {
	svc := services.NewGeocodingService(nil, time.Second, geolocation.NewMockGeocoder())
	_, err := svc.Resolve(context.Background(), "   ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestGeocodingService_FallsThroughOnProviderError(t *testing.T) {
	commercial := &geolocation.MockGeocoder{NameValue: "google", Err: assert.AnError}
	community := geolocation.NewMockGeocoder()
	community.NameValue = "nominatim"
	svc := services.NewGeocodingService(nil, time.Second, commercial, community)

	match, err := svc.ResolveMatch(context.Background(), "MG Road, Bengaluru")

	require.NoError(t, err)
	assert.Equal(t, bengaluru, match.Coordinate)
	assert.Equal(t, "nominatim", match.Provider)
	assert.Equal(t, 1, commercial.Calls())
	assert.Equal(t, 1, community.Calls())
}

func TestGeocodingService_StopsAtFirstMatch(t *testing.T) {
	first := geolocation.NewMockGeocoder()
	second := geolocation.NewMockGeocoder()
	svc := services.NewGeocodingService(nil, time.Second, first, second)

	_, err := svc.Resolve(context.Background(), "Lagos Island")

	require.NoError(t, err)
	assert.Equal(t, 1, first.Calls())
	assert.Equal(t, 0, second.Calls())
}

func TestGeocodingService_NotFound(t *testing.T) {
	empty := &geolocation.MockGeocoder{NameValue: "empty"}
	failing := &geolocation.MockGeocoder{NameValue: "failing", Err: assert.AnError}
	svc := services.NewGeocodingService(nil, time.Second, failing, empty)

	_, err := svc.Resolve(context.Background(), "Atlantis General Hospital")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "got %v", err)
}

func TestGeocodingService_AllProvidersFailed(t *testing.T) {
	svc := services.NewGeocodingService(nil, time.Second,
		&geolocation.MockGeocoder{NameValue: "google", Err: assert.AnError},
		&geolocation.MockGeocoder{NameValue: "nominatim", Err: assert.AnError},
	)

	_, err := svc.Resolve(context.Background(), "Lagos")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAllProvidersFailed))
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, strings.Contains(err.Error(), "google"))
}

func TestGeocodingService_CachesResolvedText(t *testing.T) {
	cache := newMemoryCache()
	geocoder := geolocation.NewMockGeocoder()
	svc := services.NewGeocodingService(cache, time.Second, geocoder)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "Abuja")
	require.NoError(t, err)
	second, err := svc.Resolve(ctx, "  abuja ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, geocoder.Calls())
	assert.Equal(t, 1, cache.Len())
}

func TestGeocodingService_CacheFailureDoesNotFailResolution(t *testing.T) {
	svc := services.NewGeocodingService(failingCache{}, time.Second, geolocation.NewMockGeocoder())

	coord, err := svc.Resolve(context.Background(), "New York")

	require.NoError(t, err)
	assert.InDelta(t, 40.7128, coord.Latitude, 1e-9)
}
