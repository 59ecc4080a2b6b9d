package routes

import (
	"net/http"

	"github.com/zatekoja/facility-discovery/internal/api/handlers"
	"github.com/zatekoja/facility-discovery/internal/api/middleware"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	facilityHandler    *handlers.FacilityHandler
	geolocationHandler *handlers.GeolocationHandler
	adminHandler       *handlers.AdminHandler
	healthHandler      *handlers.HealthHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	facilityHandler *handlers.FacilityHandler,
	geolocationHandler *handlers.GeolocationHandler,
	adminHandler *handlers.AdminHandler,
	healthHandler *handlers.HealthHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		facilityHandler:    facilityHandler,
		geolocationHandler: geolocationHandler,
		adminHandler:       adminHandler,
		healthHandler:      healthHandler,
		allowedOrigins:     allowedOrigins,
		metrics:            metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Discovery endpoints
	r.mux.HandleFunc("GET /api/facilities/search", r.facilityHandler.SearchFacilities)
	r.mux.HandleFunc("GET /api/geocode", r.geolocationHandler.Geocode)
	r.mux.HandleFunc("GET /api/location", r.geolocationHandler.Location)

	// Operator endpoints
	if r.adminHandler != nil {
		r.mux.HandleFunc("DELETE /api/admin/cache", r.adminHandler.ClearCache)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// RequestID sits outside observability and logging so both see the id.
	var handler http.Handler = r.mux
	handler = middleware.Compression(handler)
	handler = middleware.NoStore(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Observability(r.metrics)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(r.allowedOrigins)(handler)

	return handler
}
