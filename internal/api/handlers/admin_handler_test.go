package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-discovery/internal/api/handlers"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
)

func TestAdminHandler_ClearCache(t *testing.T) {
	discovery := new(MockDiscovery)
	handler := handlers.NewAdminHandler(discovery)
	discovery.On("ClearCache", mock.Anything).Return(nil)

	rr := httptest.NewRecorder()
	handler.ClearCache(rr, httptest.NewRequest(http.MethodDelete, "/api/admin/cache", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	decodeBody(t, rr, &body)
	assert.Equal(t, "cleared", body["status"])
	assert.Equal(t, "search", body["scope"])
	discovery.AssertExpectations(t)
	discovery.AssertNotCalled(t, "ClearGeocodes", mock.Anything)
}

func TestAdminHandler_ClearGeocodes(t *testing.T) {
	discovery := new(MockDiscovery)
	handler := handlers.NewAdminHandler(discovery)
	discovery.On("ClearGeocodes", mock.Anything).Return(nil)

	rr := httptest.NewRecorder()
	handler.ClearCache(rr, httptest.NewRequest(http.MethodDelete, "/api/admin/cache?scope=geocode", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	decodeBody(t, rr, &body)
	assert.Equal(t, "geocode", body["scope"])
	discovery.AssertExpectations(t)
	discovery.AssertNotCalled(t, "ClearCache", mock.Anything)
}

func TestAdminHandler_ClearCacheUnknownScope(t *testing.T) {
	discovery := new(MockDiscovery)
	handler := handlers.NewAdminHandler(discovery)

	rr := httptest.NewRecorder()
	handler.ClearCache(rr, httptest.NewRequest(http.MethodDelete, "/api/admin/cache?scope=everything", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	discovery.AssertNotCalled(t, "ClearCache", mock.Anything)
}

func TestAdminHandler_ClearCacheFailure(t *testing.T) {
	discovery := new(MockDiscovery)
	handler := handlers.NewAdminHandler(discovery)
	discovery.On("ClearCache", mock.Anything).Return(errors.New("redis: connection refused"))

	rr := httptest.NewRecorder()
	handler.ClearCache(rr, httptest.NewRequest(http.MethodDelete, "/api/admin/cache", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body map[string]string
	decodeBody(t, rr, &body)
	assert.Equal(t, "internal server error", body["error"])
}

func TestHealthHandler(t *testing.T) {
	handler := handlers.NewHealthHandler(
		[]entities.ProviderID{entities.ProviderRegistry, entities.ProviderOSM},
		map[string]handlers.HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	)

	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Status       string            `json:"status"`
		Providers    []string          `json:"providers"`
		Dependencies map[string]string `json:"dependencies"`
	}
	decodeBody(t, rr, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, []string{"registry", "osm"}, body.Providers)
	assert.Equal(t, "connection refused", body.Dependencies["redis"])
}

func TestHealthHandler_OpenCircuitDegrades(t *testing.T) {
	handler := handlers.NewHealthHandler([]entities.ProviderID{entities.ProviderPlaces}, nil).
		WithCircuits(func() map[string]string {
			return map[string]string{"places": "open"}
		})

	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Status   string            `json:"status"`
		Circuits map[string]string `json:"circuits"`
	}
	decodeBody(t, rr, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "open", body.Circuits["places"])
}
