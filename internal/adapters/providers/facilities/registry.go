package facilities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/clients/registry"
	"github.com/zatekoja/facility-discovery/pkg/textnorm"
)

// RegistryAdapter reads the internal facility registry.
type RegistryAdapter struct {
	client  registry.Client
	timeout time.Duration
}

// NewRegistryAdapter creates a registry adapter
func NewRegistryAdapter(client registry.Client, timeout time.Duration) *RegistryAdapter {
	return &RegistryAdapter{client: client, timeout: timeout}
}

func (a *RegistryAdapter) ID() entities.ProviderID {
	return entities.ProviderRegistry
}

func (a *RegistryAdapter) Search(ctx context.Context, req providers.AdapterRequest) entities.ProviderResult {
	return execute(ctx, a.ID(), req, a.timeout, func(ctx context.Context) ([]entities.Facility, string, error) {
		profiles, err := a.client.NearbyFacilities(ctx, registry.NearbyRequest{
			Latitude:  req.Origin.Latitude,
			Longitude: req.Origin.Longitude,
			RadiusKm:  req.RadiusKm,
			Emergency: req.Filters.EmergencyOnly,
			Ownership: string(req.Filters.Ownership),
			Specialty: req.Filters.Specialty,
		})
		if err != nil {
			return nil, "", err
		}

		out := make([]entities.Facility, 0, len(profiles))
		invalid := 0
		for _, p := range profiles {
			if p.IsActive != nil && !*p.IsActive {
				continue
			}
			f, ok := mapRegistryProfile(p)
			if !ok {
				invalid++
				continue
			}
			out = append(out, f)
		}
		return out, droppedReason(invalid, "invalid coordinates"), nil
	})
}

func mapRegistryProfile(p registry.FacilityProfile) (entities.Facility, bool) {
	coord := entities.Coordinate{Latitude: p.Location.Latitude, Longitude: p.Location.Longitude}
	if strings.TrimSpace(p.ID) == "" || coord.Validate() != nil {
		return entities.Facility{}, false
	}
	// (0,0) is the registry's placeholder for "not geocoded yet"
	if coord.Latitude == 0 && coord.Longitude == 0 {
		return entities.Facility{}, false
	}

	address := entities.Address{
		Street:     p.Address.Street,
		City:       p.Address.City,
		State:      p.Address.State,
		PostalCode: p.Address.ZipCode,
		Country:    p.Address.Country,
	}
	address.Text = joinNonEmpty(", ", address.Street, address.City, address.State, address.PostalCode, address.Country)

	f := entities.Facility{
		ID:          fmt.Sprintf("%s:%s", entities.ProviderRegistry, p.ID),
		Name:        strings.TrimSpace(p.Name),
		Coordinate:  coord,
		Address:     address,
		Phone:       strings.TrimSpace(p.PhoneNumber),
		Website:     strings.TrimSpace(p.Website),
		Rating:      validRating(p.Rating),
		Specialties: textnorm.Tags(p.Specialties),
		Ownership:   entities.ParseOwnership(p.Ownership),
		Source:      entities.ProviderRegistry,
	}
	if p.Emergency != nil {
		f.EmergencyCapable = *p.Emergency
	}
	f.RawProviderPayload = rawPayload(p)
	return f, true
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
