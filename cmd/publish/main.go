// Command publish loads the collision dataset once and writes every record to
// a Kafka topic, keyed by record ID.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/collision-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/collision-dashboard/internal/adapter/source"
	"github.com/couchcryptid/collision-dashboard/internal/config"
	"github.com/couchcryptid/collision-dashboard/internal/dataset"
	"github.com/couchcryptid/collision-dashboard/internal/observability"
	"github.com/couchcryptid/collision-dashboard/internal/publish"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidatePublisher(); err != nil {
		slog.Error("invalid publisher config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("publish failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewUnregisteredMetrics()

	src, err := source.New(ctx, cfg.DataSource, source.Options{
		Timeout:     cfg.DataFetchTimeout,
		S3Region:    cfg.S3Region,
		S3Endpoint:  cfg.S3Endpoint,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
	}, logger)
	if err != nil {
		return err
	}

	loader, err := dataset.NewLoader(cfg.DataMaxRows, cfg.Location(), metrics, logger)
	if err != nil {
		return err
	}
	snap, err := loader.Load(ctx, src)
	if err != nil {
		return err
	}

	writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()

	p := publish.New(writer, cfg.BatchSize, logger, metrics)
	n, err := p.Publish(ctx, snap)
	if errors.Is(err, context.Canceled) {
		logger.Warn("publish interrupted", "published", n, "total", len(snap.Records))
		return nil
	}
	return err
}
