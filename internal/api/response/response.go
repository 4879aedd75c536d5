// Package response writes JSON bodies and maps application errors to HTTP
// status codes.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// JSON writes payload with the given status
func JSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// Message writes a plain error message without a code
func Message(w http.ResponseWriter, statusCode int, message string) {
	JSON(w, statusCode, ErrorBody{Error: message})
}

// Error writes err, using the AppError type to choose the status. Errors
// that are not AppErrors are reported as internal without leaking their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		JSON(w, http.StatusInternalServerError, ErrorBody{Error: "internal server error", Code: string(apperrors.ErrorTypeInternal)})
		return
	}

	status := StatusFor(appErr.Type)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("code", appErr.Code).Msg("request failed")
	}
	JSON(w, status, ErrorBody{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

// StatusFor maps an error type to its HTTP status
func StatusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeForbidden:
		return http.StatusForbidden
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeGenerationFailed:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
