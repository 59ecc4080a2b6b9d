package geolocation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

func TestGoogleGeocoder_Geocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MG Road, Bengaluru", r.URL.Query().Get("address"))
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"formatted_address":"MG Road, Bengaluru, Karnataka","geometry":{"location":{"lat":12.9755,"lng":77.6050}}}]}`))
	}))
	defer server.Close()

	g := NewGoogleGeocoderWithOptions("key", server.URL, nil)
	matches, err := g.Geocode(context.Background(), "  MG Road, Bengaluru ")

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, entities.Coordinate{Latitude: 12.9755, Longitude: 77.6050}, matches[0].Coordinate)
	assert.Equal(t, "google", matches[0].Provider)
}

func TestGoogleGeocoder_ZeroResultsIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	matches, err := NewGoogleGeocoderWithOptions("key", server.URL, nil).Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestGoogleGeocoder_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"quota"}`))
	}))
	defer server.Close()

	_, err := NewGoogleGeocoderWithOptions("key", server.URL, nil).Geocode(context.Background(), "x")
	assert.ErrorContains(t, err, "OVER_QUERY_LIMIT")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	_, err = NewGoogleGeocoderWithOptions("", server.URL, nil).Geocode(context.Background(), "x")
	assert.ErrorContains(t, err, "api key is required")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}

func TestGoogleGeocoder_RegionBias(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ng", r.URL.Query().Get("region"))
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"key expired"}`))
	}))
	defer server.Close()

	g := NewGoogleGeocoderWithOptions("key", server.URL, nil)
	g.Region = "ng"
	_, err := g.Geocode(context.Background(), "Ikeja")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	assert.ErrorContains(t, err, "key expired")
}

func TestNominatimGeocoder_Geocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "facility-discovery-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`[
			{"lat":"12.9716","lon":"77.5946","display_name":"Bengaluru, Karnataka, India"},
			{"lat":"bogus","lon":"77.5","display_name":"skipped"}
		]`))
	}))
	defer server.Close()

	n := NewNominatimGeocoder(server.URL, "facility-discovery-test/1.0", 0, nil)
	matches, err := n.Geocode(context.Background(), "Bengaluru")

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 12.9716, matches[0].Coordinate.Latitude)
	assert.Equal(t, "nominatim", matches[0].Provider)
}

func TestNominatimGeocoder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewNominatimGeocoder(server.URL, "ua", 0, nil).Geocode(context.Background(), "x")
	assert.ErrorContains(t, err, "status 503")
}

func TestIPAPISource_UsesClientIPFromContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/49.207.0.1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","lat":12.97,"lon":77.59,"query":"49.207.0.1"}`))
	}))
	defer server.Close()

	source := NewIPAPISource(server.URL+"/json", nil)
	ctx := providers.WithClientIP(context.Background(), "49.207.0.1")
	pos, err := source.CurrentPosition(ctx)

	require.NoError(t, err)
	assert.Equal(t, entities.Coordinate{Latitude: 12.97, Longitude: 77.59}, pos.Coordinate)
	assert.Equal(t, float64(ipAPIAccuracyM), pos.AccuracyM)
	assert.Equal(t, "ipapi", pos.Source)
}

func TestIPAPISource_PrivateRangeIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","message":"private range","query":"10.0.0.1"}`))
	}))
	defer server.Close()

	_, err := NewIPAPISource(server.URL, nil).CurrentPosition(providers.WithClientIP(context.Background(), "10.0.0.1"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable), "got %v", err)
}

func TestIPAPISource_DeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewIPAPISource(server.URL, nil).CurrentPosition(ctx)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout), "got %v", err)
}

func TestStaticSource(t *testing.T) {
	pos, err := NewStaticSource(6.5244, 3.3792).CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6.5244, pos.Coordinate.Latitude)

	_, err = NewStaticSource(0, 0).CurrentPosition(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	_, err = NewStaticSource(120, 0).CurrentPosition(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
}
