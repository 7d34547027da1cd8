package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/forecast-proxy/internal/cache"
	"github.com/kjstillabower/forecast-proxy/internal/client"
	"github.com/kjstillabower/forecast-proxy/internal/config"
	httphandler "github.com/kjstillabower/forecast-proxy/internal/http"
	"github.com/kjstillabower/forecast-proxy/internal/lifecycle"
	"github.com/kjstillabower/forecast-proxy/internal/observability"
	"github.com/kjstillabower/forecast-proxy/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// backend is the cache plus the hooks a shared backend exposes.
type backend struct {
	cache  cache.Cache
	ping   func() error
	close  func() error
	shared bool
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("memcached cache: %w", err)
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return &backend{cache: mc, ping: mc.Ping, close: mc.Close, shared: true}, nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
		return &backend{cache: rc, ping: rc.Ping, close: rc.Close, shared: true}, nil
	default:
		logger.Info("cache backend: in_memory")
		return &backend{cache: cache.NewInMemoryCache()}, nil
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := observability.NewLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	forecastClient, err := client.NewOpenMeteoClient(cfg.UpstreamURL, nil)
	if err != nil {
		return fmt.Errorf("forecast client: %w", err)
	}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if be.close != nil {
		defer func() {
			if err := be.close(); err != nil {
				logger.Error("cache close", zap.Error(err))
			}
		}()
	}

	forecastService := service.NewForecastService(forecastClient, be.cache, cfg.CacheTTL)
	logger.Info("forecast cache configured", zap.Duration("ttl", cfg.CacheTTL), zap.String("upstream", cfg.UpstreamURL))

	if be.shared && cfg.CacheResetOnStart {
		resetCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := forecastService.ResetCache(resetCtx)
		cancel()
		if err != nil {
			logger.Warn("cache reset on start failed", zap.Error(err))
		}
	}

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		CachePing:            be.ping,
	}
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	handler := httphandler.NewHandler(forecastService, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		AllowedOrigin:  cfg.CORSAllowedOrigin,
		TestingMode:    cfg.TestingMode,
	})

	var warmer *cache.CacheWarmer
	if len(cfg.WarmQueries) > 0 {
		warmer = cache.NewCacheWarmer(forecastService, logger, cfg.RequestTimeout)
		warmCtx, warmCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		if err := warmer.Warm(warmCtx, cfg.WarmQueries); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			if err := warmer.Schedule(cfg.WarmQueries, cfg.WarmInterval); err != nil {
				return err
			}
			logger.Info("periodic cache warming scheduled", zap.Duration("interval", cfg.WarmInterval))
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-sigCtx.Done():
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
	}
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	if warmer != nil {
		warmer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
