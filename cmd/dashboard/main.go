package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/collision-dashboard/internal/adapter/http"
	"github.com/couchcryptid/collision-dashboard/internal/adapter/mapbox"
	"github.com/couchcryptid/collision-dashboard/internal/adapter/source"
	"github.com/couchcryptid/collision-dashboard/internal/config"
	"github.com/couchcryptid/collision-dashboard/internal/dashboard"
	"github.com/couchcryptid/collision-dashboard/internal/dataset"
	"github.com/couchcryptid/collision-dashboard/internal/domain"
	"github.com/couchcryptid/collision-dashboard/internal/observability"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; the environment wins either way.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if envErr == nil {
		logger.Info("loaded .env file")
	}
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	src, err := source.New(ctx, cfg.DataSource, sourceOptions(cfg), logger)
	if err != nil {
		logger.Error("invalid data source", "source", cfg.DataSource, "error", err)
		return 1
	}

	loader, err := dataset.NewLoader(cfg.DataMaxRows, cfg.Location(), metrics, logger)
	if err != nil {
		logger.Error("invalid loader settings", "error", err)
		return 1
	}
	store := dataset.NewStore(loader, src, metrics, logger)
	svc := dashboard.NewService(store, geocoder, cfg.ViewCacheSize, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Load the dataset in the background; /readyz reports 503 until it lands.
	loadFailed := make(chan error, 1)
	go func() {
		if _, err := store.Load(ctx); err != nil {
			loadFailed <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-loadFailed:
		if ctx.Err() == nil {
			logger.Error("dataset load failed, stopping", "source", src.String(), "error", err)
			exitCode = 1
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return exitCode
}

func sourceOptions(cfg *config.Config) source.Options {
	return source.Options{
		Timeout:     cfg.DataFetchTimeout,
		S3Region:    cfg.S3Region,
		S3Endpoint:  cfg.S3Endpoint,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
	}
}
