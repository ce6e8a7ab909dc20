package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-resolver/internal/client"
	"github.com/kjstillabower/weather-resolver/internal/service"
)

// apiError is the HTTP rendering of a resolve failure.
type apiError struct {
	status  int
	code    string
	message string
}

// errorFor maps a resolve error to its HTTP status, code and user-facing message.
func errorFor(err error) apiError {
	switch service.Reason(err) {
	case "not_configured":
		return apiError{http.StatusServiceUnavailable, "NOT_CONFIGURED", "Weather service is not configured"}
	case "location_not_resolved":
		return apiError{http.StatusUnprocessableEntity, "LOCATION_NOT_RESOLVED", "Location could not be geocoded"}
	case "invalid_credential":
		return apiError{http.StatusBadGateway, "INVALID_CREDENTIAL", "Weather provider rejected the API key"}
	case "rate_limited":
		return apiError{http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMITED", "Weather provider rate limit exceeded"}
	case "timeout":
		return apiError{http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Weather provider timed out"}
	case "unexpected_status":
		var statusErr *client.UnexpectedStatusError
		msg := "Unexpected response from weather provider"
		if errors.As(err, &statusErr) {
			msg = statusErr.Error()
		}
		return apiError{http.StatusBadGateway, "UPSTREAM_ERROR", msg}
	case "unreachable":
		return apiError{http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Weather provider unreachable"}
	case "malformed_response":
		return apiError{http.StatusBadGateway, "UPSTREAM_ERROR", "Malformed response from weather provider"}
	case "canceled":
		return apiError{http.StatusServiceUnavailable, "REQUEST_CANCELED", "Request canceled"}
	default:
		return apiError{http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error"}
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		corrID = v
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeResolveError writes the mapped status for a resolve failure and logs the cause at debug.
func writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	e := errorFor(err)
	writeError(w, r, e.status, e.code, e.message)
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("resolve failed", zap.String("reason", service.Reason(err)), zap.Error(err))
	}
}

func writeInternalError(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, err error) {
	writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	loggerFrom(r, fallback).Error("request failed", zap.Error(err))
}

func loggerFrom(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}
