package services

import (
	"context"
	"strings"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

// DiscoveryRequest is what an outer surface (HTTP, CLI) asks for. Exactly one
// of Text and Origin locates the search.
type DiscoveryRequest struct {
	Text      string
	Origin    *entities.Coordinate
	RadiusKm  float64
	Filters   entities.Filters
	SortBy    entities.SortBy
	SessionID string
}

// DiscoveryService resolves where to search and routes the query through the
// debouncer for interactive sessions, or straight to the cached search.
type DiscoveryService struct {
	geocoder        *GeocodingService
	geolocator      *Geolocator
	cached          *CachedSearchService
	debouncer       *Debouncer
	defaultRadiusKm float64
}

// NewDiscoveryService creates the discovery facade. debouncer may be nil.
func NewDiscoveryService(
	geocoder *GeocodingService,
	geolocator *Geolocator,
	cached *CachedSearchService,
	debouncer *Debouncer,
	defaultRadiusKm float64,
) *DiscoveryService {
	return &DiscoveryService{
		geocoder:        geocoder,
		geolocator:      geolocator,
		cached:          cached,
		debouncer:       debouncer,
		defaultRadiusKm: defaultRadiusKm,
	}
}

// Discover runs a facility search for req.
func (s *DiscoveryService) Discover(ctx context.Context, req DiscoveryRequest) (entities.SearchResult, error) {
	origin, err := s.origin(ctx, req)
	if err != nil {
		return entities.SearchResult{}, err
	}

	radius := req.RadiusKm
	if radius == 0 {
		radius = s.defaultRadiusKm
	}
	sortBy, err := entities.ParseSortBy(string(req.SortBy))
	if err != nil {
		return entities.SearchResult{}, err
	}

	q := entities.SearchQuery{
		Origin:   origin,
		RadiusKm: radius,
		Filters:  req.Filters,
		SortBy:   sortBy,
	}

	if req.SessionID != "" && s.debouncer != nil {
		return s.debouncer.Search(ctx, req.SessionID, q)
	}
	return s.cached.CachedSearch(ctx, q)
}

// Geocode resolves free text, bypassing providers for coordinate pairs.
func (s *DiscoveryService) Geocode(ctx context.Context, text string) (providers.GeocodeMatch, error) {
	return s.geocoder.ResolveMatch(ctx, text)
}

// Locate returns the caller's current position. timeout <= 0 uses the
// geolocator's default.
func (s *DiscoveryService) Locate(ctx context.Context, timeout time.Duration) (providers.Position, error) {
	if s.geolocator == nil {
		return providers.Position{}, apperrors.NewUnavailableError("geolocation is not configured", nil)
	}
	return s.geolocator.CurrentPosition(ctx, timeout)
}

// ClearCache drops cached search results on every instance.
func (s *DiscoveryService) ClearCache(ctx context.Context) error {
	return s.cached.Clear(ctx)
}

// ClearGeocodes drops cached geocoder answers on every instance, for when a
// provider has been returning bad coordinates.
func (s *DiscoveryService) ClearGeocodes(ctx context.Context) error {
	return s.cached.Invalidate(ctx, GeocodeCachePattern)
}

func (s *DiscoveryService) origin(ctx context.Context, req DiscoveryRequest) (entities.Coordinate, error) {
	text := strings.TrimSpace(req.Text)
	switch {
	case req.Origin != nil && text != "":
		return entities.Coordinate{}, apperrors.NewValidationError("give either a location text or coordinates, not both")
	case req.Origin != nil:
		if err := req.Origin.Validate(); err != nil {
			return entities.Coordinate{}, err
		}
		return *req.Origin, nil
	case text != "":
		return s.geocoder.Resolve(ctx, text)
	}
	return entities.Coordinate{}, apperrors.NewValidationError("a location text or coordinates are required")
}
