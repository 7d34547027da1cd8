package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/forecast-proxy/internal/observability"
)

// RouterConfig selects the optional parts of the route table.
type RouterConfig struct {
	RequestTimeout time.Duration
	Limiter        *rate.Limiter
	AllowedOrigin  string
	// TestingMode exposes DELETE /api/cache.
	TestingMode bool
}

// NewRouter builds the service route table:
//
//	GET    /health
//	GET    /metrics
//	GET    /api/forecast  (rate limited, request timeout)
//	DELETE /api/cache     (testing mode only)
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CORSMiddleware(cfg.AllowedOrigin))
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(AccessLogMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	api.HandleFunc("/forecast", h.GetForecast).Methods(http.MethodGet, http.MethodOptions)

	if cfg.TestingMode {
		logger.Warn("testing mode enabled; DELETE /api/cache exposed")
		api.HandleFunc("/cache", h.ResetCache).Methods(http.MethodDelete, http.MethodOptions)
	}
	return router
}
