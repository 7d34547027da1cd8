package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-proxy/internal/observability"
	"github.com/kjstillabower/forecast-proxy/internal/params"
)

// ForecastFetcher is implemented by the service layer to fetch a forecast.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type ForecastFetcher interface {
	GetForecast(ctx context.Context, p params.Params) (json.RawMessage, error)
}

// CacheWarmer warms the cache by prefetching a fixed list of forecast queries.
type CacheWarmer struct {
	fetcher   ForecastFetcher
	logger    *zap.Logger
	timeout   time.Duration
	scheduler *gocron.Scheduler
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
// timeout bounds each warm run; zero means 30s.
func NewCacheWarmer(fetcher ForecastFetcher, logger *zap.Logger, timeout time.Duration) *CacheWarmer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger, timeout: timeout}
}

// Warm fetches every query concurrently through the fetcher, which populates the cache.
// Returns an error if any query failed (aggregated).
func (w *CacheWarmer) Warm(ctx context.Context, queries []params.Params) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("queries", len(queries)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(queries))
	for _, q := range queries {
		q := q
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.fetcher.GetForecast(ctx, q); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", params.CacheKey(q), err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("queries", len(queries)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// Schedule re-runs Warm every interval on a gocron scheduler until Stop.
// The first scheduled run happens one interval from now; call Warm directly for
// an immediate run.
func (w *CacheWarmer) Schedule(queries []params.Params, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("warm interval must be positive, got %s", interval)
	}
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).WaitForSchedule().SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.Warm(ctx, queries); err != nil && w.logger != nil {
			w.logger.Warn("periodic cache warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cache warming: %w", err)
	}
	s.StartAsync()
	w.scheduler = s
	return nil
}

// Stop halts the periodic schedule, if any.
func (w *CacheWarmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}
