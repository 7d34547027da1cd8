package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-proxy/internal/client"
	"github.com/kjstillabower/forecast-proxy/internal/lifecycle"
	"github.com/kjstillabower/forecast-proxy/internal/observability"
	"github.com/kjstillabower/forecast-proxy/internal/params"
	"github.com/kjstillabower/forecast-proxy/internal/traffic"
	"github.com/kjstillabower/forecast-proxy/internal/validation"
)

// ForecastService is the lookup and reset surface the handlers need.
type ForecastService interface {
	GetForecast(ctx context.Context, p params.Params) (json.RawMessage, error)
	ResetCache(ctx context.Context) error
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// CachePing, when set, is called to check cache reachability. Used for shared backends.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	forecasts        ForecastService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil, in which case only
// shutdown and cache reachability affect /health.
func NewHandler(forecasts ForecastService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		forecasts:    forecasts,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetForecast handles GET /api/forecast.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	q := validation.ParseForecastQuery(r.URL.Query())
	if err := q.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	data, err := h.forecasts.GetForecast(r.Context(), q.Params())
	if err != nil {
		traffic.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	traffic.RecordSuccess()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ResetCache handles DELETE /api/cache. Registered only in testing mode.
func (h *Handler) ResetCache(w http.ResponseWriter, r *http.Request) {
	if err := h.forecasts.ResetCache(r.Context()); err != nil {
		h.logger.Error("cache reset failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "CACHE_RESET_FAILED", "Unable to reset cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

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

	checks := map[string]string{"upstream": "healthy"}
	if result.status == "degraded" {
		checks["upstream"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(); err != nil {
			checks["cache"] = "unhealthy"
			h.logger.Warn("cache ping failed", zap.Error(err))
		} else {
			checks["cache"] = "healthy"
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	cfg := h.healthConfig
	if cfg == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if cfg.OverloadWindow > 0 && cfg.RateLimitRPS > 0 && cfg.OverloadThresholdPct > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(cfg.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(cfg.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}

// writeUpstreamError writes 502 for a failed forecast fetch. detail carries the
// original error text so callers can tell a bad status from a transport or parse failure.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	category := client.CategorizeError(err)
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Warn("forecast fetch failed", zap.String("category", string(category)), zap.Error(err))
	}
	writeJSON(w, http.StatusBadGateway, map[string]interface{}{
		"error": map[string]string{
			"code":      "UPSTREAM_ERROR",
			"message":   "Failed to fetch forecast",
			"detail":    err.Error(),
			"requestId": correlationID(r),
		},
	})
}
