package facilities

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

func TestCKANSource_FetchWithin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/3/action/datastore_search_sql", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		sql := r.URL.Query().Get("sql")
		assert.Contains(t, sql, `FROM "nin-health-facilities"`)
		assert.Contains(t, sql, "LIMIT 500")
		_, _ = w.Write([]byte(`{"success":true,"result":{"records":[
			{"facility_code":"KA-001","facility_name":"District Hospital","latitude":"12.9760","longitude":77.5990,
			 "ownership":"Government","emergency":"Yes","specialties":"General Medicine, Obstetrics","district":"Bengaluru Urban"},
			{"facility_code":"KA-002","facility_name":"PHC Far Away","latitude":"13.0300","longitude":"77.6500","emergency":"No"},
			{"facility_code":"KA-003","facility_name":"Bad Row","latitude":"N/A","longitude":"77.59"}
		]}}`))
	}))
	defer server.Close()

	source, err := NewCKANSource(server.URL, "nin-health-facilities", "secret", nil)
	require.NoError(t, err)

	adapter := NewGovDataAdapter(source, time.Second)
	res := adapter.Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 5})

	assert.Equal(t, entities.StatusPartialOk, res.Status.Kind)
	assert.Equal(t, "1 record dropped: unparsable record", res.Status.Reason)
	require.Len(t, res.Facilities, 1, "records in the bounding box corners are filtered by distance")

	f := res.Facilities[0]
	assert.Equal(t, "gov:KA-001", f.ID)
	assert.Equal(t, entities.ProviderGov, f.Source)
	assert.True(t, f.EmergencyCapable)
	assert.Equal(t, entities.OwnershipPublic, f.Ownership)
	assert.Equal(t, []string{"general_medicine", "obstetrics"}, f.Specialties)
	assert.Equal(t, 77.599, f.Coordinate.Longitude)
	assert.Equal(t, "Bengaluru Urban", f.Address.City)
}

func TestCKANSource_ErrorTypes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind string
	}{
		{"authorization", http.StatusOK, `{"success":false,"error":{"__type":"Authorization Error","message":"Access denied"}}`, "auth"},
		{"validation", http.StatusOK, `{"success":false,"error":{"__type":"Validation Error","message":"bad sql"}}`, "malformed"},
		{"forbidden", http.StatusForbidden, `{"success":false}`, "auth"},
		{"conflict", http.StatusConflict, `{"success":false}`, "malformed"},
		{"server", http.StatusInternalServerError, ``, "network"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			source, err := NewCKANSource(server.URL, "res", "", nil)
			require.NoError(t, err)

			res := NewGovDataAdapter(source, time.Second).
				Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 5})
			assert.Equal(t, entities.StatusFailed, res.Status.Kind)
			assert.Equal(t, tt.wantKind, res.Status.ErrorKind)
		})
	}
}

func TestNewCKANSource_RejectsUnsafeResourceID(t *testing.T) {
	_, err := NewCKANSource("https://data.example.gov", `x"; DROP TABLE y; --`, "", nil)
	assert.Error(t, err)
}

func TestMapGovRecord(t *testing.T) {
	_, ok := mapGovRecord(providers.GovFacilityRecord{FacilityCode: "1", Name: "No coords"})
	assert.False(t, ok)

	_, ok = mapGovRecord(providers.GovFacilityRecord{Name: "No code", Latitude: "12.9", Longitude: "77.5"})
	assert.False(t, ok)

	f, ok := mapGovRecord(providers.GovFacilityRecord{FacilityCode: "9", Name: "Sub Centre", Latitude: " 12.9 ", Longitude: "77.5", Emergency: "available"})
	require.True(t, ok)
	assert.True(t, f.EmergencyCapable)
	assert.Equal(t, 12.9, f.Coordinate.Latitude)
}
