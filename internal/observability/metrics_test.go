package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service, and cache packages.
func TestMetrics_Usable(t *testing.T) {
	// Route uses path template to avoid cardinality
	HTTPRequestsTotal.WithLabelValues("GET", "/api/forecast", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/forecast").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("success").Inc()
	UpstreamCallsTotal.WithLabelValues("server_error").Inc()
	UpstreamDuration.WithLabelValues("success").Observe(0.1)
	UpstreamErrorsTotal.WithLabelValues("upstream_status").Inc()
	ForecastQueriesTotal.Inc()
	CacheHitsTotal.WithLabelValues("forecast").Inc()
	CacheMissesTotal.WithLabelValues("forecast").Inc()
	CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(0.001)
	CacheErrorsTotal.WithLabelValues("set", "timeout").Inc()
	CacheResetsTotal.Inc()
	CacheStampedeDetectedTotal.Inc()
	CacheStampedeConcurrency.Observe(2)
}

// TestRegisterRateLimitGauges_Idempotent verifies repeated registration does not panic.
func TestRegisterRateLimitGauges_Idempotent(t *testing.T) {
	RegisterRateLimitGauges(time.Minute)
	RegisterRateLimitGauges(time.Minute)
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
