package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/florianilch/garmin-connect-go/internal/garmin"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Category is set for authentication failures.
	Category string `json:"category,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes a JSON error response with the given status code.
// Similar to http.Error but returns JSON instead of plain text.
func writeJSONError(ctx context.Context, w http.ResponseWriter, message string, status int) {
	writeJSON(ctx, w, ErrorResponse{Error: message}, status)
}

// writeClientError maps a client error to a status code and writes it.
func writeClientError(ctx context.Context, w http.ResponseWriter, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "operation failed", "error", err)
	} else {
		slog.DebugContext(ctx, "operation rejected", "error", err, "status", status)
	}
	writeJSON(ctx, w, resp, status)
}

// classify maps the client error taxonomy to HTTP statuses.
func classify(err error) (int, ErrorResponse) {
	var (
		authErr      *garmin.AuthenticationError
		requestErr   *garmin.RequestError
		transportErr *garmin.TransportError
	)

	switch {
	case errors.Is(err, garmin.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	case errors.Is(err, garmin.ErrSessionExpired),
		errors.Is(err, garmin.ErrNotAuthenticated),
		errors.Is(err, garmin.ErrCredentialsMissing):
		return http.StatusUnauthorized, ErrorResponse{Error: err.Error()}
	case errors.As(err, &authErr):
		status := http.StatusUnauthorized
		if authErr.Category == garmin.AuthFailureNetwork {
			status = http.StatusBadGateway
		}
		return status, ErrorResponse{Error: err.Error(), Category: string(authErr.Category)}
	case errors.As(err, &requestErr):
		status := requestErr.StatusCode
		if status >= http.StatusInternalServerError || status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return status, ErrorResponse{Error: err.Error()}
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, ErrorResponse{Error: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}
	}
}
