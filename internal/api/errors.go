package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/brokerlink/internal/infrastructure/mqtt"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeNotFound          = "not_found"
	ErrCodeInternal          = "internal_error"
	ErrCodeMethodNotAllow    = "method_not_allowed"
	ErrCodeBrokerUnavailable = "broker_unavailable"
	ErrCodeRequestCancelled  = "request_cancelled"
)

// unavailableError is the 503 body returned while the broker is unreachable.
type unavailableError struct {
	Error
	Health  string               `json:"health"`
	State   mqtt.ConnectionState `json:"state"`
	Version string               `json:"version"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes the 503 for a failed health check, with a
// Retry-After of one reconnect interval.
func writeUnavailable(w http.ResponseWriter, err error, st mqtt.Status, version string) {
	setRetryAfter(w, st.ReconnectInterval)
	writeJSON(w, http.StatusServiceUnavailable, unavailableError{
		Error: Error{
			Status:  http.StatusServiceUnavailable,
			Code:    healthErrorCode(err),
			Message: err.Error(),
		},
		Health:  "degraded",
		State:   st.State,
		Version: version,
	})
}

// healthErrorCode separates an abandoned request from a broker outage.
func healthErrorCode(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeRequestCancelled
	}
	return ErrCodeBrokerUnavailable
}

// setRetryAfter sets Retry-After to d in whole seconds, rounded up.
// Non-positive durations leave the header unset.
func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	secs := int(math.Ceil(d.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}
