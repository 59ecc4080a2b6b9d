package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

const (
	geocodeCachePrefix = "geo:v3:geocode:"
	geocodeCacheTTL    = 30 * 24 * time.Hour
)

// GeocodeCachePattern matches every cached geocode.
const GeocodeCachePattern = geocodeCachePrefix + "*"

// coordinatePairPattern only accepts two signed decimals separated by a comma
// and/or whitespace. "221B Baker Street 2" must not match.
var coordinatePairPattern = regexp.MustCompile(`^\s*([+-]?\d+(?:\.\d+)?)\s*(?:,\s*|\s+)([+-]?\d+(?:\.\d+)?)\s*$`)

// ParseCoordinatePair parses "lat, lon" or "lat lon". ok is false when text is
// not a coordinate pair; err is set when it is one but out of range.
func ParseCoordinatePair(text string) (coord entities.Coordinate, ok bool, err error) {
	m := coordinatePairPattern.FindStringSubmatch(text)
	if m == nil {
		return entities.Coordinate{}, false, nil
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return entities.Coordinate{}, true, apperrors.NewValidationError(fmt.Sprintf("invalid latitude %q", m[1]))
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return entities.Coordinate{}, true, apperrors.NewValidationError(fmt.Sprintf("invalid longitude %q", m[2]))
	}
	coord, err = entities.NewCoordinate(lat, lon)
	return coord, true, err
}

// GeocodingService resolves free text to a coordinate by trying geocoders in
// priority order.
type GeocodingService struct {
	geocoders []providers.Geocoder
	cache     providers.CacheProvider
	timeout   time.Duration
}

// NewGeocodingService creates a geocoding service. Geocoders are tried in the
// given order; cache may be nil.
func NewGeocodingService(cache providers.CacheProvider, timeout time.Duration, geocoders ...providers.Geocoder) *GeocodingService {
	return &GeocodingService{
		geocoders: geocoders,
		cache:     cache,
		timeout:   timeout,
	}
}

// Resolve returns the coordinate for text. Errors are VALIDATION for empty or
// out-of-range input, NOT_FOUND when every provider answered without a match
// and ALL_PROVIDERS_FAILED when no provider answered at all.
func (s *GeocodingService) Resolve(ctx context.Context, text string) (entities.Coordinate, error) {
	match, err := s.ResolveMatch(ctx, text)
	if err != nil {
		return entities.Coordinate{}, err
	}
	return match.Coordinate, nil
}

// ResolveMatch is Resolve with the formatted address and the provider that answered.
func (s *GeocodingService) ResolveMatch(ctx context.Context, text string) (providers.GeocodeMatch, error) {
	if strings.TrimSpace(text) == "" {
		return providers.GeocodeMatch{}, apperrors.NewValidationError("location text is required")
	}

	if coord, ok, err := ParseCoordinatePair(text); ok {
		if err != nil {
			return providers.GeocodeMatch{}, err
		}
		return providers.GeocodeMatch{Coordinate: coord, FormattedAddress: coord.String(), Provider: "coordinates"}, nil
	}

	if len(s.geocoders) == 0 {
		return providers.GeocodeMatch{}, apperrors.NewAllProvidersFailedError("no geocoders configured")
	}

	ctx, span := observability.StartSpan(ctx, "geocode.resolve")
	defer span.End()

	key := geocodeCacheKey(text)
	if match, ok := s.cached(ctx, key); ok {
		observability.SetSpanAttributes(span, attribute.Bool("cache.hit", true))
		return match, nil
	}

	var (
		errs     []error
		answered bool
	)
	for _, g := range s.geocoders {
		if err := ctx.Err(); err != nil {
			return providers.GeocodeMatch{}, apperrors.NewTimeoutError("geocoding cancelled", err)
		}

		matches, err := s.geocode(ctx, g, text)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("geocoder", g.Name()).
				Msg("Geocoder failed, trying next provider")
			errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
			continue
		}
		answered = true

		for _, m := range matches {
			if m.Coordinate.Validate() != nil {
				continue
			}
			if m.Provider == "" {
				m.Provider = g.Name()
			}
			observability.SetSpanAttributes(span, attribute.String("geocoder", m.Provider))
			s.store(ctx, key, m)
			return m, nil
		}
	}

	if answered {
		return providers.GeocodeMatch{}, apperrors.NewNotFoundError(fmt.Sprintf("no location found for %q", text))
	}
	err := apperrors.NewAllProvidersFailedError("all geocoders failed", errs...)
	observability.RecordError(span, err)
	return providers.GeocodeMatch{}, err
}

func (s *GeocodingService) geocode(ctx context.Context, g providers.Geocoder, text string) ([]providers.GeocodeMatch, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return g.Geocode(ctx, text)
}

func (s *GeocodingService) cached(ctx context.Context, key string) (providers.GeocodeMatch, bool) {
	if s.cache == nil {
		return providers.GeocodeMatch{}, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Geocode cache read failed")
		}
		return providers.GeocodeMatch{}, false
	}
	var match providers.GeocodeMatch
	if err := json.Unmarshal(data, &match); err != nil || match.Coordinate.Validate() != nil {
		return providers.GeocodeMatch{}, false
	}
	return match, true
}

func (s *GeocodingService) store(ctx context.Context, key string, match providers.GeocodeMatch) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(match)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, int(geocodeCacheTTL.Seconds())); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Geocode cache write failed")
	}
}

// geocodeCacheKey ignores case and whitespace runs.
func geocodeCacheKey(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return geocodeCachePrefix + hex.EncodeToString(sum[:])
}
