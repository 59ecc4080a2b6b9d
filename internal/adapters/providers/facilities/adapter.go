// Package facilities holds one adapter per external facility source. Each adapter
// maps its provider's native schema into entities.Facility and reports its own
// outcome through a ProviderResult instead of an error.
package facilities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/pkg/geo"
)

// searchFunc performs one provider call. A non-empty reason marks the result PartialOk.
type searchFunc func(ctx context.Context) (facilities []entities.Facility, partialReason string, err error)

// execute bounds fn with the effective timeout, cancelling the in-flight request
// when it elapses, and converts the outcome into a ProviderResult.
func execute(ctx context.Context, id entities.ProviderID, req providers.AdapterRequest, defaultTimeout time.Duration, fn searchFunc) entities.ProviderResult {
	timeout := effectiveTimeout(req.Timeout, defaultTimeout)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	facilities, partial, err := fn(callCtx)
	result := entities.ProviderResult{
		Provider:  id,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		perr := classify(id, callCtx, err)
		result.Status = perr.Status()
		return result
	}

	result.Facilities = facilities
	if result.Facilities == nil {
		result.Facilities = []entities.Facility{}
	}
	if partial != "" {
		result.Status = entities.PartialOk(partial)
	} else {
		result.Status = entities.Ok()
	}
	return result
}

func effectiveTimeout(requested, configured time.Duration) time.Duration {
	switch {
	case requested <= 0:
		return configured
	case configured <= 0:
		return requested
	case requested < configured:
		return requested
	default:
		return configured
	}
}

// statusCoder is implemented by errors that carry an HTTP response code.
type statusCoder interface {
	HTTPStatus() int
}

// httpStatusError is returned by getJSON for non-2xx responses.
type httpStatusError struct {
	provider   entities.ProviderID
	statusCode int
	body       string
}

func (e *httpStatusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.provider, e.statusCode, e.body)
	}
	return fmt.Sprintf("%s returned status %d", e.provider, e.statusCode)
}

func (e *httpStatusError) HTTPStatus() int {
	return e.statusCode
}

// malformedError marks a response that arrived but could not be understood.
type malformedError struct {
	err error
}

func (e *malformedError) Error() string { return "malformed response: " + e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

func malformed(format string, args ...interface{}) error {
	return &malformedError{err: fmt.Errorf(format, args...)}
}

// authError marks credential or quota rejections reported in a response body.
type authError struct {
	reason string
}

func (e *authError) Error() string { return e.reason }

// classify maps any adapter failure onto the provider error taxonomy.
func classify(id entities.ProviderID, ctx context.Context, err error) *providers.ProviderError {
	var perr *providers.ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	kind := providers.ProviderErrorNetwork
	var (
		coded   statusCoder
		netErr  net.Error
		syntax  *json.SyntaxError
		typeErr *json.UnmarshalTypeError
		badBody *malformedError
		authErr *authError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = providers.ProviderErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = providers.ProviderErrorTimeout
	case errors.As(err, &authErr):
		kind = providers.ProviderErrorAuth
	case errors.As(err, &coded):
		kind = kindForStatus(coded.HTTPStatus())
	case errors.As(err, &badBody), errors.As(err, &syntax), errors.As(err, &typeErr),
		errors.Is(err, io.ErrUnexpectedEOF):
		kind = providers.ProviderErrorMalformed
	}

	return &providers.ProviderError{Provider: id, Kind: kind, Err: err}
}

func kindForStatus(code int) providers.ProviderErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusTooManyRequests,
		code == http.StatusPaymentRequired:
		return providers.ProviderErrorAuth
	case code == http.StatusGatewayTimeout, code == http.StatusRequestTimeout:
		return providers.ProviderErrorTimeout
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity, code == http.StatusConflict:
		return providers.ProviderErrorMalformed
	default:
		return providers.ProviderErrorNetwork
	}
}

// doJSON sends req and decodes a 2xx JSON body into out.
func doJSON(client *http.Client, id entities.ProviderID, req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpStatusError{provider: id, statusCode: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return &malformedError{err: err}
	}
	return nil
}

func newHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	// Per-call deadlines come from the request context.
	return &http.Client{}
}

// withinRadius drops facilities outside radiusKm of origin. Providers that query
// by bounding box return the corners too.
func withinRadius(in []entities.Facility, origin entities.Coordinate, radiusKm float64) []entities.Facility {
	out := in[:0]
	for _, f := range in {
		if geo.HaversineKm(origin.Latitude, origin.Longitude, f.Coordinate.Latitude, f.Coordinate.Longitude) <= radiusKm {
			out = append(out, f)
		}
	}
	return out
}

func droppedReason(n int, why string) string {
	if n == 0 {
		return ""
	}
	if n == 1 {
		return fmt.Sprintf("1 record dropped: %s", why)
	}
	return fmt.Sprintf("%d records dropped: %s", n, why)
}

func rawPayload(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func validRating(r *float64) *float64 {
	if r == nil || *r < 0 || *r > 5 {
		return nil
	}
	return entities.Float64Ptr(*r)
}
