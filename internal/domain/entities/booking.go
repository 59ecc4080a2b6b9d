package entities

import apperrors "github.com/zatekoja/facility-discovery/pkg/errors"

// BookingReference returns the identity the booking subsystem receives for a
// selected facility. Synthetic placeholders are rejected.
func BookingReference(f Facility) (FacilityRef, error) {
	if f.Synthetic || f.Source == ProviderSynthetic {
		return FacilityRef{}, apperrors.NewValidationError("synthetic placeholder facilities cannot be booked")
	}
	if f.ID == "" || f.Source == "" {
		return FacilityRef{}, apperrors.NewValidationError("facility reference requires id and source")
	}
	return f.Ref(), nil
}
