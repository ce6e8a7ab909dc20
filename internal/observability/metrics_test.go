package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetrics_Usable verifies that all metrics can be used without panic, ensuring
// label dimensions match usage across client, http, service, and cache packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/locations/{id}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/locations/{id}").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("success").Inc()
	UpstreamDuration.WithLabelValues("success").Observe(0.1)
	ResolutionsTotal.WithLabelValues("record").Inc()
	ResolutionErrorsTotal.WithLabelValues("timeout").Inc()
	RecordWritesTotal.WithLabelValues("cache").Inc()
	CacheOperationDurationSeconds.WithLabelValues("get", "hit").Observe(0.001)
	CacheErrorsTotal.WithLabelValues("set", "timeout").Inc()
	CacheStampedeDetectedTotal.WithLabelValues("zipcode").Inc()
	CacheStampedeConcurrency.WithLabelValues("zipcode").Observe(2)
	CoalescedFetchesTotal.Inc()
	GeocodeRequestsTotal.WithLabelValues("success").Inc()
	CacheWarmingTotal.Inc()
	CacheWarmingDurationSeconds.Observe(0.5)
	RegisterRateLimitGauges(time.Minute)
	RegisterRateLimitGauges(time.Minute)
}

// TestKeyKindLabel verifies derived keys map to bounded label values.
func TestKeyKindLabel(t *testing.T) {
	tests := map[string]string{
		"weather/zipcode/95014":           "zipcode",
		"weather/coordinates/37.3_-122.0": "coordinates",
		"something/else":                  "other",
	}
	for key, want := range tests {
		if got := KeyKindLabel(key); got != want {
			t.Errorf("KeyKindLabel(%q) = %q, want %q", key, got, want)
		}
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	ResolutionsTotal.WithLabelValues("upstream").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "resolutionsTotal") {
		t.Error("MetricsHandler response should contain resolutionsTotal")
	}
}
