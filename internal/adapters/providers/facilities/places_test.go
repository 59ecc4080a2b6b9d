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

func placesServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPlacesAdapter_MapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "12.971600,77.594600", q.Get("location"))
		assert.Equal(t, "5000", q.Get("radius"))
		assert.Equal(t, "hospital", q.Get("type"))
		assert.Equal(t, "emergency medicine", q.Get("keyword"))
		assert.Equal(t, "test-key", q.Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"abc","name":"City Hospital","vicinity":"MG Road","rating":4.6,"types":["hospital","health","point_of_interest"],
			 "geometry":{"location":{"lat":12.9751,"lng":77.5981}}},
			{"place_id":"gone","name":"Old Clinic","business_status":"CLOSED_PERMANENTLY","geometry":{"location":{"lat":12.97,"lng":77.59}}}
		]}`))
	}))
	defer server.Close()

	adapter := NewPlacesAdapter("test-key", server.URL, time.Second, nil)
	res := adapter.Search(context.Background(), providers.AdapterRequest{
		Origin: bengaluru, RadiusKm: 5, Filters: entities.Filters{Specialty: "emergency_medicine"},
	})

	require.Equal(t, entities.StatusOk, res.Status.Kind)
	require.Len(t, res.Facilities, 1)
	f := res.Facilities[0]
	assert.Equal(t, "places:abc", f.ID)
	assert.Equal(t, entities.ProviderPlaces, f.Source)
	assert.Equal(t, "MG Road", f.Address.Text)
	assert.Equal(t, []string{"hospital"}, f.Specialties)
	assert.Equal(t, 4.6, *f.Rating)
	assert.Empty(t, f.Phone)
	assert.False(t, f.EmergencyCapable)
}

func TestPlacesAdapter_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantKind  entities.StatusKind
		wantError string
	}{
		{"zero results", `{"status":"ZERO_RESULTS","results":[]}`, entities.StatusOk, ""},
		{"quota", `{"status":"OVER_QUERY_LIMIT","results":[]}`, entities.StatusFailed, "auth"},
		{"denied", `{"status":"REQUEST_DENIED","error_message":"key invalid"}`, entities.StatusFailed, "auth"},
		{"invalid", `{"status":"INVALID_REQUEST"}`, entities.StatusFailed, "malformed"},
		{"unknown", `{"status":"UNKNOWN_ERROR"}`, entities.StatusFailed, "network"},
		{"not json", `<html>oops</html>`, entities.StatusFailed, "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := placesServer(t, tt.body)
			res := NewPlacesAdapter("k", server.URL, time.Second, nil).
				Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 5})
			assert.Equal(t, tt.wantKind, res.Status.Kind)
			assert.Equal(t, tt.wantError, res.Status.ErrorKind)
			assert.Empty(t, res.Facilities)
		})
	}
}

func TestPlacesAdapter_NextPageIsPartial(t *testing.T) {
	server := placesServer(t, `{"status":"OK","next_page_token":"tok","results":[
		{"place_id":"a","name":"A","geometry":{"location":{"lat":12.97,"lng":77.59}}}]}`)

	res := NewPlacesAdapter("k", server.URL, time.Second, nil).
		Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 5})

	assert.Equal(t, entities.StatusPartialOk, res.Status.Kind)
	assert.Equal(t, "additional pages not fetched", res.Status.Reason)
	assert.Len(t, res.Facilities, 1)
}

func TestPlacesAdapter_MissingKeyIsAuthFailure(t *testing.T) {
	res := NewPlacesAdapter("", "http://places.invalid", time.Second, nil).
		Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 5})

	assert.Equal(t, entities.StatusFailed, res.Status.Kind)
	assert.Equal(t, "auth", res.Status.ErrorKind)
}

func TestPlacesAdapter_CapsRadius(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50000", r.URL.Query().Get("radius"))
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS"}`))
	}))
	defer server.Close()

	NewPlacesAdapter("k", server.URL, time.Second, nil).
		Search(context.Background(), providers.AdapterRequest{Origin: bengaluru, RadiusKm: 80})
}
