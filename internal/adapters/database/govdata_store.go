package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
	"github.com/zatekoja/facility-discovery/pkg/geo"
)

const govFacilitiesTable = "gov_facilities"

// GovFacilityStore reads the local mirror of the government facility dataset.
// The mirror keeps the publisher's text columns verbatim; geo_lat/geo_lon are
// filled by the importer when the text parses and are only used for the
// bounding box filter.
type GovFacilityStore struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewGovFacilityStore creates a new government dataset store
func NewGovFacilityStore(client *postgres.Client) *GovFacilityStore {
	return &GovFacilityStore{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ providers.GovDatasetSource = (*GovFacilityStore)(nil)

func (s *GovFacilityStore) Name() string {
	return "postgres"
}

// FetchWithin returns the mirrored records inside box.
func (s *GovFacilityStore) FetchWithin(ctx context.Context, box geo.BoundingBox, limit int) ([]providers.GovFacilityRecord, error) {
	query, args, err := s.db.Select(
		"facility_code", "facility_name", "latitude", "longitude", "address", "district",
		"state", "pincode", "phone", "ownership", "emergency", "specialties", "facility_type",
	).From(govFacilitiesTable).
		Where(
			goqu.C("geo_lat").Between(goqu.Range(box.MinLat, box.MaxLat)),
			goqu.C("geo_lon").Between(goqu.Range(box.MinLon, box.MaxLon)),
		).
		Order(goqu.C("facility_code").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := s.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to query government facilities", err)
	}
	defer rows.Close()

	var records []providers.GovFacilityRecord
	for rows.Next() {
		var (
			rec                                      providers.GovFacilityRecord
			address, district, state, pincode, phone sql.NullString
			ownership, emergency, facilityType       sql.NullString
			specialties                              []string
		)
		err := rows.Scan(
			&rec.FacilityCode,
			&rec.Name,
			&rec.Latitude,
			&rec.Longitude,
			&address,
			&district,
			&state,
			&pincode,
			&phone,
			&ownership,
			&emergency,
			pq.Array(&specialties),
			&facilityType,
		)
		if err != nil {
			return nil, apperrors.NewExternalError("failed to scan government facility", err)
		}

		rec.Address = address.String
		rec.District = district.String
		rec.State = state.String
		rec.Pincode = pincode.String
		rec.Phone = phone.String
		rec.Ownership = ownership.String
		rec.Emergency = emergency.String
		rec.FacilityType = facilityType.String
		rec.Specialties = strings.Join(specialties, ";")

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewExternalError("failed to read government facilities", err)
	}

	return records, nil
}
