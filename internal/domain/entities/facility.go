package entities

import (
	"encoding/json"
	"strings"
)

// ProviderID identifies where a facility record came from.
type ProviderID string

const (
	ProviderRegistry  ProviderID = "registry"
	ProviderPlaces    ProviderID = "places"
	ProviderOSM       ProviderID = "osm"
	ProviderGov       ProviderID = "gov"
	ProviderSynthetic ProviderID = "synthetic"
)

// DefaultProviderPriority is the merge survivor order, highest first.
var DefaultProviderPriority = []ProviderID{ProviderRegistry, ProviderPlaces, ProviderOSM, ProviderGov}

// ParseProviderID maps a configured name onto a known provider.
func ParseProviderID(s string) (ProviderID, bool) {
	switch id := ProviderID(s); id {
	case ProviderRegistry, ProviderPlaces, ProviderOSM, ProviderGov:
		return id, true
	}
	return "", false
}

// Ownership is the operator category of a facility.
type Ownership string

const (
	OwnershipUnknown   Ownership = ""
	OwnershipPublic    Ownership = "public"
	OwnershipPrivate   Ownership = "private"
	OwnershipNonProfit Ownership = "nonprofit"
)

// ParseOwnership normalizes the spellings providers use for operator type.
func ParseOwnership(s string) Ownership {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "government", "govt", "gov", "state", "federal", "municipal":
		return OwnershipPublic
	case "private", "commercial", "for-profit", "for_profit":
		return OwnershipPrivate
	case "nonprofit", "non_profit", "non-profit", "charity", "ngo", "community", "religious":
		return OwnershipNonProfit
	}
	return OwnershipUnknown
}

// Address is free text plus whatever structure the provider supplied.
type Address struct {
	Text       string `json:"text,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsZero reports whether no address information is present.
func (a Address) IsZero() bool {
	return a == Address{}
}

// FacilityRef is the provider-qualified identity of a facility record.
type FacilityRef struct {
	ID     string     `json:"id"`
	Source ProviderID `json:"source"`
}

// Facility is the canonical facility record. ID is unique only within Source;
// records from different providers are linked through MergedFrom, never by ID.
type Facility struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Coordinate       Coordinate    `json:"coordinate"`
	Address          Address       `json:"address"`
	Phone            string        `json:"phone,omitempty"`
	Website          string        `json:"website,omitempty"`
	Rating           *float64      `json:"rating,omitempty"`
	Specialties      []string      `json:"specialties,omitempty"`
	EmergencyCapable bool          `json:"emergency_capable"`
	Ownership        Ownership     `json:"ownership,omitempty"`
	Source           ProviderID    `json:"source"`
	Synthetic        bool          `json:"synthetic"`
	DistanceKm       float64       `json:"distance_km"`
	MergedFrom       []FacilityRef `json:"merged_from,omitempty"`

	// RawProviderPayload is the provider's native record, kept for debugging only.
	RawProviderPayload json.RawMessage `json:"raw_provider_payload,omitempty"`
}

// Ref returns the facility's provider-qualified identity.
func (f Facility) Ref() FacilityRef {
	return FacilityRef{ID: f.ID, Source: f.Source}
}

// HasSpecialty reports whether tag is among the facility's specialties.
func (f Facility) HasSpecialty(tag string) bool {
	for _, s := range f.Specialties {
		if s == tag {
			return true
		}
	}
	return false
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Clone deep-copies the slice, pointer and payload fields.
func (f Facility) Clone() Facility {
	out := f
	if f.Rating != nil {
		out.Rating = Float64Ptr(*f.Rating)
	}
	if f.Specialties != nil {
		out.Specialties = append([]string(nil), f.Specialties...)
	}
	if f.MergedFrom != nil {
		out.MergedFrom = append([]FacilityRef(nil), f.MergedFrom...)
	}
	if f.RawProviderPayload != nil {
		out.RawProviderPayload = append(json.RawMessage(nil), f.RawProviderPayload...)
	}
	return out
}
