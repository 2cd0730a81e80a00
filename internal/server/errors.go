package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Error type discriminators. Both quota and rate limit errors answer 429;
// clients tell them apart by the payload type, not the status code.
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeQuotaExceeded  = "quota_exceeded_error"
	ErrTypePermission     = "permission_error"
	ErrTypeOverloaded     = "overloaded_error"
	ErrTypeUpstream       = "upstream_error"
	ErrTypeInternal       = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error type and message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := ErrorResponse{
		Type: "error",
		Error: ErrorDetail{
			Type:    errorType,
			Message: message,
		},
	}

	writeJSON(w, statusCode, response)
}

// WriteRetryAfterError writes an error response with a Retry-After header.
// Durations under a second round up so clients never retry immediately.
func WriteRetryAfterError(w http.ResponseWriter, statusCode int, errorType, message string, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))

	WriteError(w, statusCode, errorType, message)
}

// IsBodyTooLargeError checks if an error came from http.MaxBytesReader.
func IsBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
