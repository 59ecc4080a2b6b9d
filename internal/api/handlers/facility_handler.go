package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/facility-discovery/internal/application/services"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

// Discovery is the engine surface the HTTP handlers need.
type Discovery interface {
	Discover(ctx context.Context, req services.DiscoveryRequest) (entities.SearchResult, error)
	Geocode(ctx context.Context, text string) (providers.GeocodeMatch, error)
	Locate(ctx context.Context, timeout time.Duration) (providers.Position, error)
	ClearCache(ctx context.Context) error
	ClearGeocodes(ctx context.Context) error
}

// FacilityHandler handles facility search requests
type FacilityHandler struct {
	discovery Discovery
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(discovery Discovery) *FacilityHandler {
	return &FacilityHandler{discovery: discovery}
}

// SearchFacilities handles GET /api/facilities/search
func (h *FacilityHandler) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	req, err := parseDiscoveryRequest(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.discovery.Discover(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if !queryBool(r, "debug") {
		result = result.WithoutRawPayloads()
	}
	respondWithJSON(w, http.StatusOK, result)
}

func parseDiscoveryRequest(r *http.Request) (services.DiscoveryRequest, error) {
	q := r.URL.Query()
	req := services.DiscoveryRequest{
		Text:      strings.TrimSpace(q.Get("q")),
		SortBy:    entities.SortBy(strings.TrimSpace(q.Get("sort"))),
		SessionID: strings.TrimSpace(q.Get("session")),
	}

	latStr, lonStr := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if latStr != "" || lonStr != "" {
		if latStr == "" || lonStr == "" {
			return req, apperrors.NewValidationError("lat and lon must be given together")
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return req, apperrors.NewValidationError("invalid lat parameter")
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return req, apperrors.NewValidationError("invalid lon parameter")
		}
		req.Origin = &entities.Coordinate{Latitude: lat, Longitude: lon}
	}

	if radius := strings.TrimSpace(q.Get("radius_km")); radius != "" {
		v, err := strconv.ParseFloat(radius, 64)
		if err != nil || v <= 0 {
			return req, apperrors.NewValidationError("radius_km must be a positive number")
		}
		req.RadiusKm = v
	}

	if emergency := strings.TrimSpace(q.Get("emergency")); emergency != "" {
		v, err := strconv.ParseBool(emergency)
		if err != nil {
			return req, apperrors.NewValidationError("invalid emergency parameter")
		}
		req.Filters.EmergencyOnly = v
	}

	if ownership := strings.TrimSpace(q.Get("ownership")); ownership != "" {
		req.Filters.Ownership = entities.ParseOwnership(ownership)
		if req.Filters.Ownership == entities.OwnershipUnknown {
			return req, apperrors.NewValidationError("ownership must be public, private or nonprofit")
		}
	}
	req.Filters.Specialty = strings.TrimSpace(q.Get("specialty"))

	return req, nil
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
