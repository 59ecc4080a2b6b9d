package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

const (
	ipAPIURL = "http://ip-api.com/json"

	// IP geolocation resolves to roughly city level.
	ipAPIAccuracyM = 10000
)

// IPAPISource locates the caller from their IP address using ip-api.com. The
// address is taken from the context (see providers.WithClientIP); without one
// the service resolves the address the request came from.
type IPAPISource struct {
	baseURL    string
	httpClient *http.Client
}

// NewIPAPISource creates an ip-api position source
func NewIPAPISource(baseURL string, httpClient *http.Client) *IPAPISource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = ipAPIURL
	}
	if httpClient == nil {
		// deadlines come from the caller's context
		httpClient = &http.Client{}
	}
	return &IPAPISource{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (s *IPAPISource) Name() string {
	return "ipapi"
}

func (s *IPAPISource) CurrentPosition(ctx context.Context) (providers.Position, error) {
	endpoint := s.baseURL
	if ip := providers.ClientIPFromContext(ctx); ip != "" {
		endpoint += "/" + url.PathEscape(ip)
	}
	endpoint += "?fields=status,message,lat,lon,query"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return providers.Position{}, apperrors.NewInternalError("failed to build ip lookup request", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return providers.Position{}, apperrors.NewTimeoutError("ip lookup timed out", err)
		}
		return providers.Position{}, apperrors.NewUnavailableError("ip lookup failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providers.Position{}, apperrors.NewUnavailableError(fmt.Sprintf("ip lookup returned status %d", resp.StatusCode), nil)
	}

	var payload ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return providers.Position{}, apperrors.NewUnavailableError("failed to decode ip lookup response", err)
	}
	if payload.Status != "success" {
		// "private range", "reserved range" and "invalid query" all mean no fix is possible
		return providers.Position{}, apperrors.NewUnavailableError(fmt.Sprintf("ip lookup failed: %s", payload.Message), nil)
	}

	coord, err := entities.NewCoordinate(payload.Lat, payload.Lon)
	if err != nil {
		return providers.Position{}, apperrors.NewUnavailableError("ip lookup returned invalid coordinates", err)
	}
	return providers.Position{Coordinate: coord, AccuracyM: ipAPIAccuracyM, Source: s.Name()}, nil
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Query   string  `json:"query"`
}
