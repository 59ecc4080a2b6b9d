package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness plus the state of optional dependencies. A
// failing dependency degrades the report but never fails it, since searches
// keep working without a cache.
type HealthHandler struct {
	providers []entities.ProviderID
	checks    map[string]HealthCheck
	circuits  func() map[string]string
}

// NewHealthHandler creates a health handler. checks may be nil.
func NewHealthHandler(providers []entities.ProviderID, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{providers: providers, checks: checks}
}

// WithCircuits adds provider circuit breaker states to the report. An open
// circuit degrades the status.
func (h *HealthHandler) WithCircuits(states func() map[string]string) *HealthHandler {
	h.circuits = states
	return h
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	providers := h.providers
	if providers == nil {
		providers = []entities.ProviderID{}
	}
	body := map[string]interface{}{
		"providers":    providers,
		"dependencies": deps,
	}
	if h.circuits != nil {
		circuits := h.circuits()
		for _, state := range circuits {
			if state == "open" {
				status = "degraded"
			}
		}
		body["circuits"] = circuits
	}
	body["status"] = status
	respondWithJSON(w, http.StatusOK, body)
}
