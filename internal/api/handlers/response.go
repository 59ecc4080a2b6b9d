package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-discovery/internal/application/services"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-discovery/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to write response body")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps err onto an HTTP status. Internal details are only
// logged; the body carries the AppError message.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// the client went away, nobody is reading
		return
	}
	if errors.Is(err, services.ErrSuperseded) {
		respondWithJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
			"type":  "SUPERSEDED",
		})
		return
	}

	errType := apperrors.TypeOf(err)
	if errType == "" {
		errType = apperrors.ErrorTypeInternal
	}
	status := statusFor(errType)
	message := "internal server error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		message = appErr.Message
	}

	logger := observability.LoggerFromContext(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")

	respondWithJSON(w, status, map[string]string{
		"error": message,
		"type":  string(errType),
	})
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypePermissionDenied:
		return http.StatusForbidden
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeExternal, apperrors.ErrorTypeAllProvidersFailed:
		return http.StatusBadGateway
	case apperrors.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
