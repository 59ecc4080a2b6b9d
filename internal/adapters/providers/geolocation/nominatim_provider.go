package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// NominatimGeocoder implements providers.Geocoder against an OpenStreetMap
// Nominatim instance. The public instance requires an identifying User-Agent
// and at most one request per second.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatimGeocoder creates a Nominatim geocoder. requestsPerSec <= 0 disables the limiter.
func NewNominatimGeocoder(baseURL, userAgent string, requestsPerSec float64, httpClient *http.Client) *NominatimGeocoder {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = nominatimSearchURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	limit := rate.Inf
	if requestsPerSec > 0 {
		limit = rate.Limit(requestsPerSec)
	}
	return &NominatimGeocoder{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (n *NominatimGeocoder) Name() string {
	return "nominatim"
}

func (n *NominatimGeocoder) Geocode(ctx context.Context, address string) ([]providers.GeocodeMatch, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("address is required")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("nominatim rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("q", trimmed)
	params.Set("format", "jsonv2")
	params.Set("limit", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build nominatim request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nominatim request returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	matches := make([]providers.GeocodeMatch, 0, len(places))
	for _, p := range places {
		lat, errLat := strconv.ParseFloat(p.Lat, 64)
		lon, errLon := strconv.ParseFloat(p.Lon, 64)
		if errLat != nil || errLon != nil {
			continue
		}
		coord := entities.Coordinate{Latitude: lat, Longitude: lon}
		if coord.Validate() != nil {
			continue
		}
		matches = append(matches, providers.GeocodeMatch{
			Coordinate:       coord,
			FormattedAddress: p.DisplayName,
			Provider:         n.Name(),
		})
	}
	return matches, nil
}

// Nominatim encodes coordinates as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
