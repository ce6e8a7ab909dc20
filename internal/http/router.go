package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-resolver/internal/observability"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	TestingMode    bool
}

// NewRouter wires the handler's routes behind the standard middleware chain.
// Health and metrics bypass the rate limiter and request timeout.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(SecurityHeadersMiddleware)
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/locations").Subrouter()
	api.Use(RateLimitMiddleware(opts.Limiter))
	if opts.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	api.HandleFunc("", h.CreateLocation).Methods(http.MethodPost)
	api.HandleFunc("", h.ListLocations).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.GetLocation).Methods(http.MethodGet)
	api.HandleFunc("/{id}/weather", h.GetLocationWeather).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.DeleteLocation).Methods(http.MethodDelete)

	if opts.TestingMode {
		router.HandleFunc("/test", h.GetTestStatus).Methods(http.MethodGet)
		router.HandleFunc("/test/{action}", h.PostTestAction).Methods(http.MethodPost)
	}
	return router
}
