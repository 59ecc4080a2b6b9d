package facilities

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/pkg/textnorm"
)

const (
	googlePlacesNearbyURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	placesMaxRadiusMeters = 50000
)

// PlacesAdapter queries the commercial places API (Google Places Nearby Search).
type PlacesAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewPlacesAdapter creates a places adapter. An empty baseURL selects the public endpoint.
func NewPlacesAdapter(apiKey, baseURL string, timeout time.Duration, httpClient *http.Client) *PlacesAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googlePlacesNearbyURL
	}
	return &PlacesAdapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: newHTTPClient(httpClient),
		timeout:    timeout,
	}
}

func (a *PlacesAdapter) ID() entities.ProviderID {
	return entities.ProviderPlaces
}

func (a *PlacesAdapter) Search(ctx context.Context, req providers.AdapterRequest) entities.ProviderResult {
	return execute(ctx, a.ID(), req, a.timeout, func(ctx context.Context) ([]entities.Facility, string, error) {
		if a.apiKey == "" {
			return nil, "", &authError{reason: "places api key is not configured"}
		}

		payload, err := a.nearby(ctx, req)
		if err != nil {
			return nil, "", err
		}

		switch payload.Status {
		case "OK":
		case "ZERO_RESULTS":
			return []entities.Facility{}, "", nil
		case "OVER_QUERY_LIMIT", "REQUEST_DENIED":
			return nil, "", &authError{reason: placesStatusMessage(payload)}
		case "INVALID_REQUEST":
			return nil, "", malformed("%s", placesStatusMessage(payload))
		default:
			return nil, "", fmt.Errorf("%s", placesStatusMessage(payload))
		}

		out := make([]entities.Facility, 0, len(payload.Results))
		invalid := 0
		for _, r := range payload.Results {
			if r.BusinessStatus == "CLOSED_PERMANENTLY" {
				continue
			}
			f, ok := mapPlace(r)
			if !ok {
				invalid++
				continue
			}
			out = append(out, f)
		}

		var reasons []string
		if reason := droppedReason(invalid, "missing id or coordinates"); reason != "" {
			reasons = append(reasons, reason)
		}
		if payload.NextPageToken != "" {
			reasons = append(reasons, "additional pages not fetched")
		}
		return out, strings.Join(reasons, "; "), nil
	})
}

func (a *PlacesAdapter) nearby(ctx context.Context, req providers.AdapterRequest) (*placesNearbyResponse, error) {
	radius := int(math.Min(req.RadiusKm*1000, placesMaxRadiusMeters))

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", req.Origin.Latitude, req.Origin.Longitude))
	params.Set("radius", fmt.Sprintf("%d", radius))
	params.Set("type", "hospital")
	if req.Filters.Specialty != "" {
		params.Set("keyword", strings.ReplaceAll(req.Filters.Specialty, "_", " "))
	}
	params.Set("key", a.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build places request: %w", err)
	}

	var payload placesNearbyResponse
	if err := doJSON(a.httpClient, a.ID(), httpReq, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func mapPlace(r placesResult) (entities.Facility, bool) {
	coord := entities.Coordinate{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng}
	if r.PlaceID == "" || strings.TrimSpace(r.Name) == "" || coord.Validate() != nil {
		return entities.Facility{}, false
	}

	return entities.Facility{
		ID:                 fmt.Sprintf("%s:%s", entities.ProviderPlaces, r.PlaceID),
		Name:               strings.TrimSpace(r.Name),
		Coordinate:         coord,
		Address:            entities.Address{Text: r.Vicinity},
		Rating:             validRating(r.Rating),
		Specialties:        textnorm.Tags(placeCategories(r.Types)),
		Source:             entities.ProviderPlaces,
		RawProviderPayload: rawPayload(r),
	}, true
}

// placeCategories keeps the medical place types and drops generic ones.
func placeCategories(types []string) []string {
	var out []string
	for _, t := range types {
		switch t {
		case "hospital", "doctor", "dentist", "physiotherapist", "pharmacy":
			out = append(out, t)
		}
	}
	return out
}

func placesStatusMessage(p *placesNearbyResponse) string {
	if p.ErrorMessage != "" {
		return fmt.Sprintf("places status %s: %s", p.Status, p.ErrorMessage)
	}
	return fmt.Sprintf("places status %s", p.Status)
}

type placesNearbyResponse struct {
	Status        string         `json:"status"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	Results       []placesResult `json:"results"`
}

type placesResult struct {
	PlaceID        string   `json:"place_id"`
	Name           string   `json:"name"`
	Vicinity       string   `json:"vicinity"`
	Types          []string `json:"types"`
	Rating         *float64 `json:"rating,omitempty"`
	BusinessStatus string   `json:"business_status,omitempty"`
	Geometry       struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}
