package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-resolver/internal/cache"
	"github.com/kjstillabower/weather-resolver/internal/client"
	"github.com/kjstillabower/weather-resolver/internal/config"
	"github.com/kjstillabower/weather-resolver/internal/geocode"
	"github.com/kjstillabower/weather-resolver/internal/health"
	httphandler "github.com/kjstillabower/weather-resolver/internal/http"
	"github.com/kjstillabower/weather-resolver/internal/observability"
	"github.com/kjstillabower/weather-resolver/internal/service"
	"github.com/kjstillabower/weather-resolver/internal/store"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.FlushLogs(logger) }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if !weatherClient.Configured() {
		logger.Warn("WEATHER_API_KEY not set; weather resolution will fail with not_configured")
	}

	cacheSvc, err := newCache(cfg)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))

	st, err := newStore(cfg)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	logger.Info("store backend", zap.String("backend", cfg.StoreBackend))

	geocoder := geocode.NewNominatimGeocoder(geocode.Options{
		BaseURL:      cfg.GeocoderURL,
		UserAgent:    cfg.GeocoderUserAgent,
		CountryCodes: cfg.GeocoderCountryCodes,
		Timeout:      cfg.GeocoderTimeout,
	})

	resolver := service.NewResolver(weatherClient, cacheSvc, st, service.Options{
		CoalesceEnabled: cfg.CoalesceEnabled,
		CoalesceTimeout: cfg.CoalesceTimeout,
		Logger:          logger,
	})
	locations := service.NewLocationService(resolver, st, geocoder, logger)

	warmer := cache.NewWarmer(locations, logger)
	if len(cfg.WarmingLocationIDs) > 0 {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		if err := warmer.Warm(warmCtx, cfg.WarmingLocationIDs); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmingInterval > 0 {
			if err := warmer.Schedule(cfg.WarmingLocationIDs, cfg.WarmingInterval, cfg.RequestTimeout); err != nil {
				logger.Error("schedule cache warming", zap.Error(err))
			}
		}
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		Configured:       weatherClient.Configured(),
		StorePing:        st.Ping,
	}
	if p, ok := cacheSvc.(cache.Pinger); ok {
		healthConfig.CachePing = p.Ping
	}
	handler := httphandler.NewHandler(locations, healthConfig, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.DegradedWindow)

	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
	}
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		TestingMode:    cfg.TestingMode,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	health.SetShuttingDown(true)
	warmer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if c, ok := cacheSvc.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case "memcached":
		return cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
	case "redis":
		return cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTimeout), nil
	default:
		return cache.NewInMemoryCache(), nil
	}
}

func newStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreBackend == "sqlite" {
		return store.OpenSQLite(cfg.SQLitePath)
	}
	return store.NewMemoryStore(), nil
}
