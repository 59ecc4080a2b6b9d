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
	"github.com/zatekoja/facility-discovery/internal/infrastructure/clients/registry"
)

var bengaluru = entities.Coordinate{Latitude: 12.9716, Longitude: 77.5946}

func TestRegistryAdapter_MapsProfiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cardiology", r.URL.Query().Get("specialty"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"42","name":" City Hospital ","ownership":"Government","specialties":["Cardiology","Emergency Medicine"],
			 "emergencyCapable":true,"rating":4.2,"phoneNumber":"080-1234",
			 "address":{"street":"1 MG Road","city":"Bengaluru","state":"KA","zipCode":"560001","country":"IN"},
			 "location":{"latitude":12.975,"longitude":77.598}},
			{"id":"43","name":"Closed Clinic","isActive":false,"location":{"latitude":12.97,"longitude":77.59}}
		]}`))
	}))
	defer server.Close()

	adapter := NewRegistryAdapter(registry.NewClient(server.URL), time.Second)
	res := adapter.Search(context.Background(), providers.AdapterRequest{
		Origin: bengaluru, RadiusKm: 5, Filters: entities.Filters{Specialty: "cardiology"},
	})

	require.Equal(t, entities.StatusOk, res.Status.Kind)
	require.Len(t, res.Facilities, 1)
	f := res.Facilities[0]
	assert.Equal(t, "registry:42", f.ID)
	assert.Equal(t, "City Hospital", f.Name)
	assert.Equal(t, entities.ProviderRegistry, f.Source)
	assert.Equal(t, entities.OwnershipPublic, f.Ownership)
	assert.Equal(t, []string{"cardiology", "emergency_medicine"}, f.Specialties)
	assert.True(t, f.EmergencyCapable)
	require.NotNil(t, f.Rating)
	assert.Equal(t, 4.2, *f.Rating)
	assert.Equal(t, "1 MG Road, Bengaluru, KA, 560001, IN", f.Address.Text)
	assert.Empty(t, f.Website)
	assert.NotEmpty(t, f.RawProviderPayload)
}

func TestRegistryAdapter_InvalidCoordinatesArePartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"1","name":"Good","location":{"latitude":12.97,"longitude":77.59}},
			{"id":"2","name":"Ungeocoded","location":{"latitude":0,"longitude":0}},
			{"id":"3","name":"Broken","location":{"latitude":123,"longitude":77.59}}
		]}`))
	}))
	defer server.Close()

	res := NewRegistryAdapter(registry.NewClient(server.URL), time.Second).
		Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 5})

	assert.Equal(t, entities.StatusPartialOk, res.Status.Kind)
	assert.Equal(t, "2 records dropped: invalid coordinates", res.Status.Reason)
	assert.Len(t, res.Facilities, 1)
}

func TestRegistryAdapter_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	res := NewRegistryAdapter(registry.NewClient(server.URL), time.Second).
		Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 5})

	assert.Equal(t, entities.StatusFailed, res.Status.Kind)
	assert.Equal(t, "auth", res.Status.ErrorKind)
	assert.Empty(t, res.Facilities)
}

func TestRegistryAdapter_CancelsInFlightRequestOnTimeout(t *testing.T) {
	cancelled := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(cancelled)
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	start := time.Now()
	res := NewRegistryAdapter(registry.NewClient(server.URL), time.Second).
		Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 5, Timeout: 50 * time.Millisecond})

	assert.Equal(t, entities.StatusTimedOut, res.Status.Kind)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("server request was not cancelled")
	}
}
