package facilities

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/pkg/geo"
	"github.com/zatekoja/facility-discovery/pkg/textnorm"
)

const govFetchLimit = 500

// GovDataAdapter reads a government health facility dataset through a
// GovDatasetSource (the CKAN datastore API or a local Postgres mirror).
type GovDataAdapter struct {
	source  providers.GovDatasetSource
	timeout time.Duration
}

// NewGovDataAdapter creates a government dataset adapter
func NewGovDataAdapter(source providers.GovDatasetSource, timeout time.Duration) *GovDataAdapter {
	return &GovDataAdapter{source: source, timeout: timeout}
}

func (a *GovDataAdapter) ID() entities.ProviderID {
	return entities.ProviderGov
}

func (a *GovDataAdapter) Search(ctx context.Context, req providers.AdapterRequest) entities.ProviderResult {
	return execute(ctx, a.ID(), req, a.timeout, func(ctx context.Context) ([]entities.Facility, string, error) {
		box := geo.BoundingBoxAround(req.Origin.Latitude, req.Origin.Longitude, req.RadiusKm)
		records, err := a.source.FetchWithin(ctx, box, govFetchLimit)
		if err != nil {
			return nil, "", err
		}

		out := make([]entities.Facility, 0, len(records))
		invalid := 0
		for _, rec := range records {
			f, ok := mapGovRecord(rec)
			if !ok {
				invalid++
				continue
			}
			out = append(out, f)
		}
		out = withinRadius(out, req.Origin, req.RadiusKm)

		var reasons []string
		if reason := droppedReason(invalid, "unparsable record"); reason != "" {
			reasons = append(reasons, reason)
		}
		if len(records) >= govFetchLimit {
			reasons = append(reasons, fmt.Sprintf("result truncated at %d records", govFetchLimit))
		}
		return out, strings.Join(reasons, "; "), nil
	})
}

func mapGovRecord(rec providers.GovFacilityRecord) (entities.Facility, bool) {
	code := strings.TrimSpace(rec.FacilityCode)
	name := strings.TrimSpace(rec.Name)
	if code == "" || name == "" {
		return entities.Facility{}, false
	}

	lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec.Latitude), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec.Longitude), 64)
	if errLat != nil || errLon != nil {
		return entities.Facility{}, false
	}
	coord := entities.Coordinate{Latitude: lat, Longitude: lon}
	if coord.Validate() != nil || (lat == 0 && lon == 0) {
		return entities.Facility{}, false
	}

	address := entities.Address{
		Street:     strings.TrimSpace(rec.Address),
		City:       strings.TrimSpace(rec.District),
		State:      strings.TrimSpace(rec.State),
		PostalCode: strings.TrimSpace(rec.Pincode),
	}
	address.Text = joinNonEmpty(", ", address.Street, address.City, address.State, address.PostalCode)

	return entities.Facility{
		ID:                 fmt.Sprintf("%s:%s", entities.ProviderGov, code),
		Name:               name,
		Coordinate:         coord,
		Address:            address,
		Phone:              strings.TrimSpace(rec.Phone),
		Specialties:        textnorm.Tags(splitAny(rec.Specialties, ",;")),
		EmergencyCapable:   parseYes(rec.Emergency),
		Ownership:          entities.ParseOwnership(rec.Ownership),
		Source:             entities.ProviderGov,
		RawProviderPayload: rawPayload(rec),
	}, true
}

func parseYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1", "available":
		return true
	}
	return false
}

func splitAny(s, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
}
