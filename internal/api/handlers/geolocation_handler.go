package handlers

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

// GeolocationHandler handles geocoding and device location endpoints.
type GeolocationHandler struct {
	discovery Discovery
}

// NewGeolocationHandler creates a new geolocation handler.
func NewGeolocationHandler(discovery Discovery) *GeolocationHandler {
	return &GeolocationHandler{discovery: discovery}
}

// Geocode handles GET /api/geocode?q=...
func (h *GeolocationHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		respondWithError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	match, err := h.discovery.Geocode(r.Context(), text)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"query":             text,
		"lat":               match.Coordinate.Latitude,
		"lon":               match.Coordinate.Longitude,
		"formatted_address": match.FormattedAddress,
		"provider":          match.Provider,
	})
}

// Location handles GET /api/location?timeout_ms=...
func (h *GeolocationHandler) Location(w http.ResponseWriter, r *http.Request) {
	var timeout time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("timeout_ms")); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			respondWithError(w, http.StatusBadRequest, "timeout_ms must be a positive integer")
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	ctx := providers.WithClientIP(r.Context(), ClientIP(r))
	pos, err := h.discovery.Locate(ctx, timeout)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, pos)
}

// ClientIP returns the originating address of r, preferring the first
// X-Forwarded-For hop set by a proxy.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
