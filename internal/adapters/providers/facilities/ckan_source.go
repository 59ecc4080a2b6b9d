package facilities

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/pkg/geo"
)

var ckanResourceID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CKANSource reads a government dataset published on a CKAN portal through the
// datastore_search_sql action.
type CKANSource struct {
	baseURL    string
	resourceID string
	apiKey     string
	httpClient *http.Client
}

// NewCKANSource creates a CKAN dataset source. baseURL is the portal root.
func NewCKANSource(baseURL, resourceID, apiKey string, httpClient *http.Client) (*CKANSource, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("ckan base url is required")
	}
	if !ckanResourceID.MatchString(resourceID) {
		return nil, fmt.Errorf("invalid ckan resource id %q", resourceID)
	}
	return &CKANSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		resourceID: resourceID,
		apiKey:     apiKey,
		httpClient: newHTTPClient(httpClient),
	}, nil
}

func (s *CKANSource) Name() string {
	return "ckan"
}

func (s *CKANSource) FetchWithin(ctx context.Context, box geo.BoundingBox, limit int) ([]providers.GovFacilityRecord, error) {
	params := url.Values{"sql": []string{s.buildSQL(box, limit)}}
	endpoint := fmt.Sprintf("%s/api/3/action/datastore_search_sql?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ckan request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", s.apiKey)
	}

	var payload ckanResponse
	if err := doJSON(s.httpClient, entities.ProviderGov, req, &payload); err != nil {
		return nil, err
	}
	if !payload.Success {
		msg := "ckan request failed"
		if payload.Error != nil {
			msg = fmt.Sprintf("ckan %s: %s", payload.Error.Type, payload.Error.Message)
			if payload.Error.Type == "Authorization Error" {
				return nil, &authError{reason: msg}
			}
			if payload.Error.Type == "Validation Error" {
				return nil, malformed("%s", msg)
			}
		}
		return nil, fmt.Errorf("%s", msg)
	}

	records := make([]providers.GovFacilityRecord, 0, len(payload.Result.Records))
	for _, row := range payload.Result.Records {
		records = append(records, providers.GovFacilityRecord{
			FacilityCode: field(row, "facility_code"),
			Name:         field(row, "facility_name"),
			Latitude:     field(row, "latitude"),
			Longitude:    field(row, "longitude"),
			Address:      field(row, "address"),
			District:     field(row, "district"),
			State:        field(row, "state"),
			Pincode:      field(row, "pincode"),
			Phone:        field(row, "phone"),
			Ownership:    field(row, "ownership"),
			Emergency:    field(row, "emergency"),
			Specialties:  field(row, "specialties"),
			FacilityType: field(row, "facility_type"),
		})
	}
	return records, nil
}

// buildSQL renders the bounding box query. Only formatted floats and the
// validated resource id are interpolated.
func (s *CKANSource) buildSQL(box geo.BoundingBox, limit int) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return fmt.Sprintf(
		`SELECT * FROM "%s" WHERE latitude ~ '^-?[0-9.]+$' AND longitude ~ '^-?[0-9.]+$' `+
			`AND CAST(latitude AS float) BETWEEN %s AND %s AND CAST(longitude AS float) BETWEEN %s AND %s LIMIT %d`,
		s.resourceID, f(box.MinLat), f(box.MaxLat), f(box.MinLon), f(box.MaxLon), limit,
	)
}

func field(row map[string]interface{}, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

type ckanResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []map[string]interface{} `json:"records"`
	} `json:"result"`
	Error *struct {
		Type    string `json:"__type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
