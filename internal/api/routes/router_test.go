package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-discovery/internal/api/handlers"
	"github.com/zatekoja/facility-discovery/internal/api/routes"
	"github.com/zatekoja/facility-discovery/internal/application/services"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

type stubDiscovery struct {
	cleared bool
}

func (s *stubDiscovery) Discover(ctx context.Context, req services.DiscoveryRequest) (entities.SearchResult, error) {
	return entities.SearchResult{SearchID: "s-1", Origin: *req.Origin, RadiusKm: req.RadiusKm}, nil
}

func (s *stubDiscovery) Geocode(ctx context.Context, text string) (providers.GeocodeMatch, error) {
	return providers.GeocodeMatch{Provider: "coordinates"}, nil
}

func (s *stubDiscovery) Locate(ctx context.Context, timeout time.Duration) (providers.Position, error) {
	return providers.Position{Source: "static"}, nil
}

func (s *stubDiscovery) ClearCache(ctx context.Context) error {
	s.cleared = true
	return nil
}

func (s *stubDiscovery) ClearGeocodes(ctx context.Context) error {
	return nil
}

func newHandler(d handlers.Discovery) http.Handler {
	return routes.NewRouter(
		handlers.NewFacilityHandler(d),
		handlers.NewGeolocationHandler(d),
		handlers.NewAdminHandler(d),
		handlers.NewHealthHandler([]entities.ProviderID{entities.ProviderRegistry}, nil),
		nil,
		nil,
	).SetupRoutes()
}

func TestRouter_Routes(t *testing.T) {
	d := &stubDiscovery{}
	server := httptest.NewServer(newHandler(d))
	defer server.Close()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/facilities/search?lat=12.97&lon=77.59&radius_km=5", http.StatusOK},
		{http.MethodGet, "/api/geocode?q=12.97,77.59", http.StatusOK},
		{http.MethodGet, "/api/location", http.StatusOK},
		{http.MethodDelete, "/api/admin/cache", http.StatusOK},
		{http.MethodPost, "/api/facilities/search", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/facilities/registry:1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, server.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
	assert.True(t, d.cleared)
}

func TestRouter_SearchResponseIsJSON(t *testing.T) {
	server := httptest.NewServer(newHandler(&stubDiscovery{}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/facilities/search?lat=12.97&lon=77.59&radius_km=5")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body entities.SearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "s-1", body.SearchID)
	assert.Equal(t, 5.0, body.RadiusKm)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}
