package providers

import (
	"context"

	"github.com/zatekoja/facility-discovery/pkg/geo"
)

// GovFacilityRecord is one row of a government health facility dataset.
// Publishers type every column as text.
type GovFacilityRecord struct {
	FacilityCode string `json:"facility_code"`
	Name         string `json:"facility_name"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	Address      string `json:"address"`
	District     string `json:"district"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Phone        string `json:"phone"`
	Ownership    string `json:"ownership"`
	Emergency    string `json:"emergency"`
	Specialties  string `json:"specialties"`
	FacilityType string `json:"facility_type"`
}

// GovDatasetSource reads government facility records inside a bounding box.
type GovDatasetSource interface {
	Name() string
	FetchWithin(ctx context.Context, box geo.BoundingBox, limit int) ([]GovFacilityRecord, error)
}
