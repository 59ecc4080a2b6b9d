package entities

import (
	"fmt"
	"time"

	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

// SortBy selects the primary ranking key.
type SortBy string

const (
	SortByDistance SortBy = "distance"
	SortByRating   SortBy = "rating"
	SortByName     SortBy = "name"
)

// ParseSortBy accepts an empty string as distance.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(s) {
	case "", SortByDistance:
		return SortByDistance, nil
	case SortByRating:
		return SortByRating, nil
	case SortByName:
		return SortByName, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown sort %q, want distance, rating or name", s))
}

// Filters narrows a search. Zero values mean "no filter".
type Filters struct {
	EmergencyOnly bool      `json:"emergency_only,omitempty"`
	Ownership     Ownership `json:"ownership,omitempty"`
	Specialty     string    `json:"specialty,omitempty"`
}

// SearchQuery is passed by value and never mutated once built.
type SearchQuery struct {
	Origin   Coordinate `json:"origin"`
	RadiusKm float64    `json:"radius_km"`
	Filters  Filters    `json:"filters"`
	SortBy   SortBy     `json:"sort_by"`
}

// Validate checks the origin, the radius against maxRadiusKm and the sort key.
func (q SearchQuery) Validate(maxRadiusKm float64) error {
	if err := q.Origin.Validate(); err != nil {
		return err
	}
	if !(q.RadiusKm > 0) {
		return apperrors.NewValidationError("radius must be positive")
	}
	if q.RadiusKm > maxRadiusKm {
		return apperrors.NewValidationError(fmt.Sprintf("radius %gkm exceeds maximum of %gkm", q.RadiusKm, maxRadiusKm))
	}
	if _, err := ParseSortBy(string(q.SortBy)); err != nil {
		return err
	}
	return nil
}

// StatusKind is the outcome class of one provider call.
type StatusKind string

const (
	StatusOk        StatusKind = "ok"
	StatusPartialOk StatusKind = "partial_ok"
	StatusFailed    StatusKind = "failed"
	StatusTimedOut  StatusKind = "timed_out"
)

// ProviderStatus describes how a provider call ended. Reason is set for
// PartialOk and Failed; ErrorKind is set for Failed and TimedOut.
type ProviderStatus struct {
	Kind      StatusKind `json:"kind"`
	Reason    string     `json:"reason,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
}

func Ok() ProviderStatus { return ProviderStatus{Kind: StatusOk} }

func PartialOk(reason string) ProviderStatus {
	return ProviderStatus{Kind: StatusPartialOk, Reason: reason}
}

func Failed(errorKind, reason string) ProviderStatus {
	return ProviderStatus{Kind: StatusFailed, Reason: reason, ErrorKind: errorKind}
}

func TimedOut() ProviderStatus {
	return ProviderStatus{Kind: StatusTimedOut, ErrorKind: "timeout"}
}

// Usable reports whether the provider's facilities may be merged.
func (s ProviderStatus) Usable() bool {
	return s.Kind == StatusOk || s.Kind == StatusPartialOk
}

// ProviderResult is created per search call and discarded after merge.
type ProviderResult struct {
	Provider   ProviderID     `json:"provider"`
	Facilities []Facility     `json:"facilities"`
	Status     ProviderStatus `json:"status"`
	LatencyMs  int64          `json:"latency_ms"`
}

// Summary drops the facilities, keeping what callers need to explain result quality.
func (r ProviderResult) Summary() ProviderStatusSummary {
	return ProviderStatusSummary{
		Provider:  r.Provider,
		Status:    r.Status,
		Count:     len(r.Facilities),
		LatencyMs: r.LatencyMs,
	}
}

// ProviderStatusSummary is the per-provider status reported on a SearchResult.
type ProviderStatusSummary struct {
	Provider  ProviderID     `json:"provider"`
	Status    ProviderStatus `json:"status"`
	Count     int            `json:"count"`
	LatencyMs int64          `json:"latency_ms"`
}

// SearchResult is handed to the caller, which owns it from then on.
type SearchResult struct {
	SearchID         string                  `json:"search_id"`
	Origin           Coordinate              `json:"origin"`
	RadiusKm         float64                 `json:"radius_km"`
	Facilities       []Facility              `json:"facilities"`
	ProviderStatuses []ProviderStatusSummary `json:"provider_statuses"`
	Degraded         bool                    `json:"degraded"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// Clone returns a deep copy so cached values are never shared with callers.
func (r SearchResult) Clone() SearchResult {
	out := r
	out.Facilities = make([]Facility, len(r.Facilities))
	for i, f := range r.Facilities {
		out.Facilities[i] = f.Clone()
	}
	out.ProviderStatuses = append([]ProviderStatusSummary(nil), r.ProviderStatuses...)
	return out
}

// WithoutRawPayloads returns a copy with the debug payloads stripped.
func (r SearchResult) WithoutRawPayloads() SearchResult {
	out := r.Clone()
	for i := range out.Facilities {
		out.Facilities[i].RawProviderPayload = nil
	}
	return out
}

// CacheEntry is what the query cache stores for a key.
type CacheEntry struct {
	Key       string       `json:"key"`
	Value     SearchResult `json:"value"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
