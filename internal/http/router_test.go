package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-proxy/internal/cache"
	"github.com/kjstillabower/forecast-proxy/internal/client"
	"github.com/kjstillabower/forecast-proxy/internal/service"
)

func newTestStack(t *testing.T, testingMode bool, upstream http.HandlerFunc) (http.Handler, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		upstream(w, r)
	}))
	t.Cleanup(server.Close)

	c, err := client.NewOpenMeteoClient(server.URL, nil)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}
	svc := service.NewForecastService(c, cache.NewInMemoryCache(), time.Minute)
	h := NewHandler(svc, nil, zap.NewNop())
	return NewRouter(h, zap.NewNop(), RouterConfig{RequestTimeout: 5 * time.Second, TestingMode: testingMode}), &calls
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

const forecastPath = "/api/forecast?latitude=47.38&longitude=8.54&hourly=temperature_2m"

// TestRouter_ForecastCachedAndReset verifies the full stack: repeat lookups are served from
// cache, DELETE /api/cache clears it, and the next lookup goes upstream again.
func TestRouter_ForecastCachedAndReset(t *testing.T) {
	router, calls := newTestStack(t, true, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hourly":{"temperature_2m":[3.1]}}`)
	})

	for i := 0; i < 2; i++ {
		w := serve(router, http.MethodGet, forecastPath)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %d status = %d; body %s", i, w.Code, w.Body.String())
		}
		if w.Body.String() != `{"hourly":{"temperature_2m":[3.1]}}` {
			t.Errorf("body = %s", w.Body.String())
		}
		if w.Header().Get("X-Correlation-ID") == "" {
			t.Error("X-Correlation-ID missing")
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("upstream calls = %d, want 1", calls.Load())
	}

	if w := serve(router, http.MethodDelete, "/api/cache"); w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /api/cache status = %d, want 204", w.Code)
	}
	if w := serve(router, http.MethodGet, forecastPath); w.Code != http.StatusOK {
		t.Fatalf("GET after reset status = %d", w.Code)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls after reset = %d, want 2", calls.Load())
	}
}

// TestRouter_ResetHiddenOutsideTestingMode verifies DELETE /api/cache is not routed.
func TestRouter_ResetHiddenOutsideTestingMode(t *testing.T) {
	router, _ := newTestStack(t, false, func(w http.ResponseWriter, r *http.Request) {})
	if w := serve(router, http.MethodDelete, "/api/cache"); w.Code != http.StatusNotFound {
		t.Errorf("DELETE /api/cache status = %d, want 404", w.Code)
	}
}

// TestRouter_UpstreamStatus verifies an upstream 502 becomes a 502 envelope with the exact message.
func TestRouter_UpstreamStatus(t *testing.T) {
	router, _ := newTestStack(t, false, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	w := serve(router, http.MethodGet, forecastPath)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Open-Meteo returned 502") {
		t.Errorf("body = %s, want upstream message", w.Body.String())
	}
}

// TestRouter_HealthAndMetrics verifies the operational endpoints are routed.
func TestRouter_HealthAndMetrics(t *testing.T) {
	router, _ := newTestStack(t, false, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_ = serve(router, http.MethodGet, forecastPath)

	if w := serve(router, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", w.Code)
	}
	w := serve(router, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", w.Code)
	}
	for _, name := range []string{"httpRequestsTotal", "upstreamCallsTotal", "cacheMissesTotal"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("/metrics missing %s", name)
		}
	}
}

// TestRouter_Preflight verifies CORS preflight on the forecast route.
func TestRouter_Preflight(t *testing.T) {
	router, calls := newTestStack(t, false, func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest(http.MethodOptions, "/api/forecast", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Allow-Origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if calls.Load() != 0 {
		t.Error("preflight must not reach upstream")
	}
}
