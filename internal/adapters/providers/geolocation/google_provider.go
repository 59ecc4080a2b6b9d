package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

const (
	googleGeocodeURL   = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultHTTPTimeout = 8 * time.Second
)

// GoogleGeocoder implements providers.Geocoder using the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Region biases ambiguous text towards a ccTLD region ("ng", "in"). Empty
	// means no bias.
	Region string
}

// NewGoogleGeocoder creates a geocoder against the public endpoint.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return NewGoogleGeocoderWithOptions(apiKey, googleGeocodeURL, nil)
}

// NewGoogleGeocoderWithOptions allows overriding base URL and HTTP client.
func NewGoogleGeocoderWithOptions(apiKey, baseURL string, httpClient *http.Client) *GoogleGeocoder {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googleGeocodeURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GoogleGeocoder{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient}
}

func (g *GoogleGeocoder) Name() string {
	return "google"
}

// Geocode returns candidate coordinates for text, best match first. Results
// with out-of-range coordinates are dropped.
func (g *GoogleGeocoder) Geocode(ctx context.Context, text string) ([]providers.GeocodeMatch, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("address is required")
	}
	if g.apiKey == "" {
		return nil, apperrors.NewUnauthorizedError("google maps api key is required")
	}

	params := url.Values{"address": {text}, "key": {g.apiKey}}
	if g.Region != "" {
		params.Set("region", g.Region)
	}

	body, err := g.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := body.err(); err != nil {
		return nil, err
	}

	var matches []providers.GeocodeMatch
	for _, r := range body.Results {
		c := entities.Coordinate{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng}
		if c.Validate() != nil {
			continue
		}
		matches = append(matches, providers.GeocodeMatch{
			Coordinate:       c,
			FormattedAddress: r.FormattedAddress,
			Provider:         g.Name(),
		})
	}
	return matches, nil
}

func (g *GoogleGeocoder) fetch(ctx context.Context, params url.Values) (*googleGeocodeBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build geocode request", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("geocode request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, apperrors.NewExternalError(fmt.Sprintf("geocode request returned status %d", resp.StatusCode), nil)
	}

	var body googleGeocodeBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.NewExternalError("failed to decode geocode response", err)
	}
	return &body, nil
}

type googleGeocodeBody struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// err maps the API status field. ZERO_RESULTS is an answer, not a failure.
func (b *googleGeocodeBody) err() error {
	msg := "geocode request failed: " + b.Status
	if b.ErrorMessage != "" {
		msg += " - " + b.ErrorMessage
	}
	switch b.Status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "REQUEST_DENIED":
		return apperrors.NewUnauthorizedError(msg)
	case "INVALID_REQUEST":
		return apperrors.NewValidationError(msg)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return apperrors.NewUnavailableError(msg, nil)
	}
	return apperrors.NewExternalError(msg, nil)
}
