package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-proxy/internal/cache"
	"github.com/kjstillabower/forecast-proxy/internal/client"
	"github.com/kjstillabower/forecast-proxy/internal/observability"
	"github.com/kjstillabower/forecast-proxy/internal/params"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 5 * time.Minute

// ForecastService serves forecasts cache-aside: a fresh entry is returned as
// stored, anything else is fetched upstream and written back. Concurrent misses
// for one key are not coalesced; each fetches and the last write wins.
type ForecastService struct {
	client client.ForecastClient
	cache  cache.Cache
	ttl    time.Duration
	now    func() time.Time
	misses *missTracker
}

// Option configures a ForecastService.
type Option func(*ForecastService)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(s *ForecastService) { s.now = now }
}

// NewForecastService creates a ForecastService. ttl is fixed for the life of the
// service; a negative ttl is replaced by DefaultTTL and zero means every lookup misses.
func NewForecastService(c client.ForecastClient, store cache.Cache, ttl time.Duration, opts ...Option) *ForecastService {
	if ttl < 0 {
		ttl = DefaultTTL
	}
	s := &ForecastService{
		client: c,
		cache:  store,
		ttl:    ttl,
		now:    time.Now,
		misses: newMissTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured entry lifetime.
func (s *ForecastService) TTL() time.Duration { return s.ttl }

// CacheKey returns the cache key for p. It is pure and does not filter p.
func (s *ForecastService) CacheKey(p params.Params) string {
	return params.CacheKey(p)
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetForecast returns the forecast for p. The key is built from p as given; only
// the defined parameters are sent upstream. Upstream, transport and parse errors
// are returned exactly as the client produced them.
func (s *ForecastService) GetForecast(ctx context.Context, p params.Params) (json.RawMessage, error) {
	observability.ForecastQueriesTotal.Inc()
	key := params.CacheKey(p)
	now := s.now()
	logger := loggerFromContext(ctx)

	getStart := time.Now()
	entry, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	switch {
	case err != nil:
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
		if logger != nil {
			logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		}
	case ok && entry.Fresh(now):
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
		observability.CacheHitsTotal.WithLabelValues("forecast").Inc()
		if logger != nil {
			logger.Debug("cache hit", zap.String("key", key), zap.Time("expires", entry.Expires))
		}
		return entry.Data, nil
	default:
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
	}

	observability.CacheMissesTotal.WithLabelValues("forecast").Inc()
	concurrent, done := s.misses.begin(key)
	defer done()
	if concurrent > 1 {
		observability.CacheStampedeDetectedTotal.Inc()
		observability.CacheStampedeConcurrency.Observe(float64(concurrent))
	}
	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("key", key), zap.Bool("expired", ok))
	}

	data, err := s.client.Forecast(ctx, p)
	if err != nil {
		return nil, err
	}

	setStart := time.Now()
	if setErr := s.cache.Set(ctx, key, cache.Entry{Data: data, Expires: now.Add(s.ttl)}); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		if logger != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	} else {
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
	}
	return data, nil
}

// ResetCache removes every cached forecast. Lookups made after it returns
// always go upstream.
func (s *ForecastService) ResetCache(ctx context.Context) error {
	start := time.Now()
	if err := s.cache.Reset(ctx); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("reset", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("reset", "error").Observe(time.Since(start).Seconds())
		return err
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("reset", "success").Observe(time.Since(start).Seconds())
	observability.CacheResetsTotal.Inc()
	if logger := loggerFromContext(ctx); logger != nil {
		logger.Info("forecast cache reset")
	}
	return nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
