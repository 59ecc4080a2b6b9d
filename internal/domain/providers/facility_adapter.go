package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
)

// AdapterRequest is the bounded-radius query handed to one adapter.
type AdapterRequest struct {
	Origin   entities.Coordinate
	RadiusKm float64
	Filters  entities.Filters
	// Timeout bounds the adapter's own in-flight request. Zero means the
	// adapter's configured default.
	Timeout time.Duration
}

// FacilityAdapter translates one external source into canonical facilities.
//
// Search never returns an error: every failure is reported through the
// ProviderResult status so that one adapter cannot abort a search.
type FacilityAdapter interface {
	ID() entities.ProviderID
	Search(ctx context.Context, req AdapterRequest) entities.ProviderResult
}

// ProviderErrorKind classifies an adapter failure.
type ProviderErrorKind string

const (
	ProviderErrorNetwork   ProviderErrorKind = "network"
	ProviderErrorAuth      ProviderErrorKind = "auth"
	ProviderErrorMalformed ProviderErrorKind = "malformed"
	ProviderErrorTimeout   ProviderErrorKind = "timeout"
)

// ProviderError is local to one adapter. It is converted into a ProviderResult
// status and never crosses the orchestrator.
type ProviderError struct {
	Provider entities.ProviderID
	Kind     ProviderErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Status converts the error into the provider status reported to callers.
func (e *ProviderError) Status() entities.ProviderStatus {
	if e.Kind == ProviderErrorTimeout {
		return entities.TimedOut()
	}
	return entities.Failed(string(e.Kind), e.Err.Error())
}
