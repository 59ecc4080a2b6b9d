package handlers

import (
	"net/http"

	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

// AdminHandler exposes operator actions.
type AdminHandler struct {
	discovery Discovery
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(discovery Discovery) *AdminHandler {
	return &AdminHandler{discovery: discovery}
}

// ClearCache handles DELETE /api/admin/cache?scope=search|geocode. The default
// scope drops cached search results.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")

	var err error
	switch scope {
	case "", "search":
		scope = "search"
		err = h.discovery.ClearCache(r.Context())
	case "geocode":
		err = h.discovery.ClearGeocodes(r.Context())
	default:
		err = apperrors.NewValidationError("scope must be search or geocode")
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "cleared", "scope": scope})
}
