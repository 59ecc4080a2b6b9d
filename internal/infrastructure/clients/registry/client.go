package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client reads the internal facility registry. The registry is consumed read-only.
type Client interface {
	NearbyFacilities(ctx context.Context, req NearbyRequest) ([]FacilityProfile, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

type NearbyRequest struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	Emergency bool
	Ownership string
	Specialty string
	Limit     int
}

// FacilityProfile is the registry's own facility schema.
type FacilityProfile struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	FacilityType string   `json:"facilityType"`
	Ownership    string   `json:"ownership"`
	Specialties  []string `json:"specialties"`
	Tags         []string `json:"tags"`
	Emergency    *bool    `json:"emergencyCapable"`
	Rating       *float64 `json:"rating"`
	Address      struct {
		Street  string `json:"street"`
		City    string `json:"city"`
		State   string `json:"state"`
		ZipCode string `json:"zipCode"`
		Country string `json:"country"`
	} `json:"address"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	PhoneNumber string    `json:"phoneNumber"`
	Website     string    `json:"website"`
	IsActive    *bool     `json:"isActive"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// StatusError is returned for non-2xx registry responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("registry returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("registry returned status %d", e.StatusCode)
}

// HTTPStatus exposes the response code to error classifiers.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

func NewClient(baseURL string) *HTTPClient {
	return NewClientWithHTTPClient(baseURL, &http.Client{Timeout: 10 * time.Second})
}

// NewClientWithHTTPClient is used by tests and by callers that share a transport.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *HTTPClient) NearbyFacilities(ctx context.Context, req NearbyRequest) ([]FacilityProfile, error) {
	parsed, err := url.Parse(fmt.Sprintf("%s/facilities/nearby", c.baseURL))
	if err != nil {
		return nil, err
	}

	query := parsed.Query()
	query.Set("lat", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	query.Set("radius_km", strconv.FormatFloat(req.RadiusKm, 'f', -1, 64))
	if req.Emergency {
		query.Set("emergency", "true")
	}
	if req.Ownership != "" {
		query.Set("ownership", req.Ownership)
	}
	if req.Specialty != "" {
		query.Set("specialty", req.Specialty)
	}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	parsed.RawQuery = query.Encode()

	var response struct {
		Data []FacilityProfile `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, parsed.String(), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}

	return nil
}
