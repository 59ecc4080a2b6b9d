package facilities

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/pkg/textnorm"
)

const overpassDefaultURL = "https://overpass-api.de/api/interpreter"

// OverpassAdapter queries community geodata (OpenStreetMap) through the Overpass API.
// The public instances enforce a per-client request rate, so calls are gated
// by a token bucket shared by every search in the process.
type OverpassAdapter struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewOverpassAdapter creates an Overpass adapter. requestsPerSec <= 0 disables the limiter.
func NewOverpassAdapter(baseURL string, timeout time.Duration, requestsPerSec float64, httpClient *http.Client) *OverpassAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = overpassDefaultURL
	}
	limit := rate.Inf
	if requestsPerSec > 0 {
		limit = rate.Limit(requestsPerSec)
	}
	return &OverpassAdapter{
		baseURL:    baseURL,
		httpClient: newHTTPClient(httpClient),
		timeout:    timeout,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (a *OverpassAdapter) ID() entities.ProviderID {
	return entities.ProviderOSM
}

func (a *OverpassAdapter) Search(ctx context.Context, req providers.AdapterRequest) entities.ProviderResult {
	return execute(ctx, a.ID(), req, a.timeout, func(ctx context.Context) ([]entities.Facility, string, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			// Wait fails early when the token would arrive after the deadline.
			return nil, "", &providers.ProviderError{Provider: a.ID(), Kind: providers.ProviderErrorTimeout, Err: err}
		}

		payload, err := a.interpret(ctx, req)
		if err != nil {
			return nil, "", err
		}

		out := make([]entities.Facility, 0, len(payload.Elements))
		for _, el := range payload.Elements {
			f, ok := mapOverpassElement(el)
			if !ok {
				continue
			}
			out = append(out, f)
		}
		return out, strings.TrimSpace(payload.Remark), nil
	})
}

func (a *OverpassAdapter) interpret(ctx context.Context, req providers.AdapterRequest) (*overpassResponse, error) {
	query := buildOverpassQuery(req, a.timeout)
	form := url.Values{"data": []string{query}}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build overpass request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var payload overpassResponse
	if err := doJSON(a.httpClient, a.ID(), httpReq, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func buildOverpassQuery(req providers.AdapterRequest, timeout time.Duration) string {
	serverTimeout := int(math.Max(1, math.Ceil(timeout.Seconds())))
	around := fmt.Sprintf("(around:%d,%s,%s)",
		int(req.RadiusKm*1000),
		strconv.FormatFloat(req.Origin.Latitude, 'f', -1, 64),
		strconv.FormatFloat(req.Origin.Longitude, 'f', -1, 64),
	)
	emergency := ""
	if req.Filters.EmergencyOnly {
		emergency = `["emergency"="yes"]`
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", serverTimeout)
	fmt.Fprintf(&b, "  nwr[\"amenity\"~\"^(hospital|clinic|doctors)$\"]%s%s;\n", emergency, around)
	fmt.Fprintf(&b, "  nwr[\"healthcare\"~\"^(hospital|clinic|centre|doctor)$\"]%s%s;\n", emergency, around)
	b.WriteString(");\nout center tags;")
	return b.String()
}

func mapOverpassElement(el overpassElement) (entities.Facility, bool) {
	name := strings.TrimSpace(el.Tags["name"])
	if name == "" || el.ID == 0 || el.Type == "" {
		return entities.Facility{}, false
	}

	coord := entities.Coordinate{Latitude: el.Lat, Longitude: el.Lon}
	if el.Center != nil {
		coord = entities.Coordinate{Latitude: el.Center.Lat, Longitude: el.Center.Lon}
	}
	if coord.Validate() != nil || (coord.Latitude == 0 && coord.Longitude == 0) {
		return entities.Facility{}, false
	}

	address := entities.Address{
		Street:     joinNonEmpty(" ", el.Tags["addr:housenumber"], el.Tags["addr:street"]),
		City:       el.Tags["addr:city"],
		State:      el.Tags["addr:state"],
		PostalCode: el.Tags["addr:postcode"],
		Country:    el.Tags["addr:country"],
	}
	address.Text = el.Tags["addr:full"]
	if address.Text == "" {
		address.Text = joinNonEmpty(", ", address.Street, address.City, address.State, address.PostalCode)
	}

	return entities.Facility{
		ID:                 fmt.Sprintf("%s:%s:%d", entities.ProviderOSM, el.Type, el.ID),
		Name:               name,
		Coordinate:         coord,
		Address:            address,
		Phone:              firstTag(el.Tags, "phone", "contact:phone"),
		Website:            firstTag(el.Tags, "website", "contact:website", "url"),
		Specialties:        textnorm.Tags(splitList(el.Tags["healthcare:speciality"], ";")),
		EmergencyCapable:   el.Tags["emergency"] == "yes",
		Ownership:          entities.ParseOwnership(el.Tags["operator:type"]),
		Source:             entities.ProviderOSM,
		RawProviderPayload: rawPayload(el),
	}, true
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, sep)
}

type overpassResponse struct {
	Remark   string            `json:"remark,omitempty"`
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat,omitempty"`
	Lon    float64           `json:"lon,omitempty"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
