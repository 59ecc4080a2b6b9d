package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

// Geolocator applies the accuracy and timeout policy to a position source.
// It never retries; a failed fix is returned to the caller as is.
type Geolocator struct {
	source         providers.PositionSource
	maxAccuracyM   float64
	defaultTimeout time.Duration
}

// NewGeolocator creates a geolocator. maxAccuracyM <= 0 accepts any accuracy.
func NewGeolocator(source providers.PositionSource, maxAccuracyM float64, defaultTimeout time.Duration) *Geolocator {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	return &Geolocator{
		source:         source,
		maxAccuracyM:   maxAccuracyM,
		defaultTimeout: defaultTimeout,
	}
}

// CurrentLocation returns the caller's coordinate. Errors are AppErrors of type
// PERMISSION_DENIED, UNAVAILABLE or TIMEOUT.
func (g *Geolocator) CurrentLocation(ctx context.Context, timeout time.Duration) (entities.Coordinate, error) {
	pos, err := g.CurrentPosition(ctx, timeout)
	if err != nil {
		return entities.Coordinate{}, err
	}
	return pos.Coordinate, nil
}

// CurrentPosition is CurrentLocation with the accuracy and source of the fix.
// timeout <= 0 uses the configured default.
func (g *Geolocator) CurrentPosition(ctx context.Context, timeout time.Duration) (providers.Position, error) {
	if g.source == nil {
		return providers.Position{}, apperrors.NewUnavailableError("no position source configured", nil)
	}
	if timeout <= 0 {
		timeout = g.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type fix struct {
		pos providers.Position
		err error
	}
	done := make(chan fix, 1)
	go func() {
		pos, err := g.source.CurrentPosition(ctx)
		done <- fix{pos: pos, err: err}
	}()

	// A source that ignores ctx still cannot hold the caller past the deadline.
	var f fix
	select {
	case f = <-done:
	case <-ctx.Done():
		return providers.Position{}, g.contextError(ctx.Err(), timeout)
	}

	if f.err != nil {
		return providers.Position{}, g.classify(f.err, timeout)
	}

	if err := f.pos.Coordinate.Validate(); err != nil {
		return providers.Position{}, apperrors.NewUnavailableError("position source returned an invalid coordinate", err)
	}
	if g.maxAccuracyM > 0 && f.pos.AccuracyM > g.maxAccuracyM {
		observability.LoggerFromContext(ctx).Warn().
			Str("source", g.source.Name()).
			Float64("accuracy_m", f.pos.AccuracyM).
			Float64("max_accuracy_m", g.maxAccuracyM).
			Msg("Rejected imprecise position fix")
		return providers.Position{}, apperrors.NewUnavailableError(
			fmt.Sprintf("position accuracy %.0fm is worse than the %.0fm limit", f.pos.AccuracyM, g.maxAccuracyM), nil)
	}
	if f.pos.Source == "" {
		f.pos.Source = g.source.Name()
	}
	return f.pos, nil
}

func (g *Geolocator) classify(err error, timeout time.Duration) error {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypePermissionDenied, apperrors.ErrorTypeUnavailable, apperrors.ErrorTypeTimeout:
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return g.contextError(err, timeout)
	}
	return apperrors.NewUnavailableError("position source failed", err)
}

func (g *Geolocator) contextError(err error, timeout time.Duration) error {
	if errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("position request cancelled", err)
	}
	return apperrors.NewTimeoutError(fmt.Sprintf("no position fix within %s", timeout), err)
}
