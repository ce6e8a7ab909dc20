package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-resolver/internal/geocode"
	"github.com/kjstillabower/weather-resolver/internal/health"
	"github.com/kjstillabower/weather-resolver/internal/models"
	"github.com/kjstillabower/weather-resolver/internal/observability"
	"github.com/kjstillabower/weather-resolver/internal/service"
	"github.com/kjstillabower/weather-resolver/internal/store"
	"github.com/kjstillabower/weather-resolver/internal/validation"
)

// maxBodyBytes caps POST bodies.
const maxBodyBytes = 4 << 10

// maxSimulatedErrors caps a single POST /test/error.
const maxSimulatedErrors = 10000

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// Configured reports whether an upstream credential is present.
	Configured bool
	// CachePing and StorePing, when set, report backend reachability.
	CachePing func(ctx context.Context) error
	StorePing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	locations        *service.LocationService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(locations *service.LocationService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		locations:    locations,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

type weatherResponse struct {
	CurrentTemp *float64  `json:"currentTemp"`
	HighTemp    *float64  `json:"highTemp"`
	LowTemp     *float64  `json:"lowTemp"`
	Conditions  *string   `json:"conditions"`
	GeneratedAt time.Time `json:"generatedAt"`
	FromCache   bool      `json:"fromCache"`
}

type warningResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type locationResponse struct {
	models.Location
	DisplayName string           `json:"displayName"`
	Weather     *weatherResponse `json:"weather,omitempty"`
	Warning     *warningResponse `json:"warning,omitempty"`
}

func newWeatherResponse(res service.Resolution) *weatherResponse {
	return &weatherResponse{
		CurrentTemp: res.Record.CurrentTemp,
		HighTemp:    res.Record.HighTemp,
		LowTemp:     res.Record.LowTemp,
		Conditions:  res.Record.Conditions,
		GeneratedAt: res.Record.GeneratedAt,
		FromCache:   res.ServedFromCache,
	}
}

// newLocationResponse renders a Location with its weather, or a warning when the
// weather could not be resolved and withWarning is set.
func newLocationResponse(lw service.LocationWeather, withWarning bool) locationResponse {
	resp := locationResponse{
		Location:    lw.Location,
		DisplayName: lw.Location.DisplayName(),
	}
	if lw.Resolution != nil {
		resp.Weather = newWeatherResponse(*lw.Resolution)
	} else if lw.Err != nil && withWarning {
		e := errorFor(lw.Err)
		resp.Warning = &warningResponse{Code: e.code, Message: "Unable to fetch weather: " + e.message}
	}
	return resp
}

// CreateLocation handles POST /locations.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateLocationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON with an address")
		return
	}
	req, err := validation.ValidateCreateLocation(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
		return
	}

	result, err := h.locations.Create(r.Context(), req.Address)
	if err != nil {
		if errors.Is(err, geocode.ErrUnavailable) {
			health.RecordError()
			writeError(w, r, http.StatusBadGateway, "GEOCODER_UNAVAILABLE", "Unable to geocode address")
			loggerFrom(r, h.logger).Warn("geocoder unavailable", zap.Error(err))
			return
		}
		writeInternalError(w, r, h.logger, err)
		return
	}
	recordOutcome(result.Err)

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
		w.Header().Set("Location", "/locations/"+result.Location.ID)
	}
	writeJSON(w, status, newLocationResponse(result.LocationWeather, true))
}

// ListLocations handles GET /locations. Weather is included for Locations that resolve.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	list, err := h.locations.List(r.Context())
	if err != nil {
		writeInternalError(w, r, h.logger, err)
		return
	}
	out := make([]locationResponse, 0, len(list))
	for _, lw := range list {
		recordOutcome(lw.Err)
		out = append(out, newLocationResponse(lw, false))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"locations": out,
	})
}

// GetLocation handles GET /locations/{id}. A weather failure is reported as a warning.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	lw, ok := h.lookup(w, r)
	if !ok {
		return
	}
	recordOutcome(lw.Err)
	writeJSON(w, http.StatusOK, newLocationResponse(lw, true))
}

// GetLocationWeather handles GET /locations/{id}/weather. Resolve failures map to error statuses.
func (h *Handler) GetLocationWeather(w http.ResponseWriter, r *http.Request) {
	lw, ok := h.lookup(w, r)
	if !ok {
		return
	}
	recordOutcome(lw.Err)
	if lw.Err != nil {
		writeResolveError(w, r, lw.Err)
		return
	}
	writeJSON(w, http.StatusOK, newWeatherResponse(*lw.Resolution))
}

// DeleteLocation handles DELETE /locations/{id}.
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validation.ValidateLocationID(id); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION_ID", err.Error())
		return
	}
	if err := h.locations.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "Location not found")
			return
		}
		writeInternalError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (service.LocationWeather, bool) {
	id := mux.Vars(r)["id"]
	if err := validation.ValidateLocationID(id); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION_ID", err.Error())
		return service.LocationWeather{}, false
	}
	lw, err := h.locations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "Location not found")
			return service.LocationWeather{}, false
		}
		writeInternalError(w, r, h.logger, err)
		return service.LocationWeather{}, false
	}
	return lw, true
}

// recordOutcome feeds the degraded-state window. Only provider and store failures count
// as errors; requests for unresolved Locations are the caller's problem.
func recordOutcome(err error) {
	switch service.Reason(err) {
	case "":
		health.RecordSuccess()
	case "location_not_resolved", "canceled":
	default:
		health.RecordError()
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())
	result := h.computeHealthStatus(checks)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) runChecks(ctx context.Context) map[string]string {
	checks := make(map[string]string)
	if h.healthConfig == nil {
		return checks
	}
	if h.healthConfig.Configured {
		checks["weatherApi"] = "configured"
	} else {
		checks["weatherApi"] = "not_configured"
	}
	probe := func(name string, ping func(ctx context.Context) error) {
		if ping == nil {
			return
		}
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if ping(pingCtx) == nil {
			checks[name] = "healthy"
		} else {
			checks[name] = "unhealthy"
		}
	}
	probe("cache", h.healthConfig.CachePing)
	probe("store", h.healthConfig.StorePing)
	return checks
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > store unreachable > error-rate breach > healthy.
// An unreachable cache is reported but does not degrade: cache failures fall through to upstream.
func (h *Handler) computeHealthStatus(checks map[string]string) healthResult {
	if health.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if checks["store"] == "unhealthy" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := health.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// GetTestStatus handles GET /test. Returns the current outcome window.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	window := h.degradedWindow()
	errs, total := health.ErrorRate(window)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_requests_in_window":  health.RequestCount(window),
		"denied_requests_in_window": health.DenialCount(window),
		"errors_in_window":          errs,
		"resolves_in_window":        total,
		"window_length":             window.String(),
	})
}

// PostTestAction handles POST /test/{action} for error, reset and shutdown.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	switch action {
	case "error":
		var body struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil || body.Count <= 0 {
			body.Count = 1
		}
		if body.Count > maxSimulatedErrors {
			body.Count = maxSimulatedErrors
		}
		for i := 0; i < body.Count; i++ {
			health.RecordError()
		}
		result := h.computeHealthStatus(h.runChecks(r.Context()))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "error",
			"message": "Recorded " + strconv.Itoa(body.Count) + " errors",
			"state":   result.status,
		})
	case "reset":
		health.Reset()
		health.SetShuttingDown(false)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "reset",
			"message": "All simulated state cleared",
		})
	case "shutdown":
		health.SetShuttingDown(true)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "shutdown",
			"message": "Shutting-down flag set",
		})
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
	}
}

func (h *Handler) degradedWindow() time.Duration {
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 {
		return h.healthConfig.DegradedWindow
	}
	return 60 * time.Second
}
