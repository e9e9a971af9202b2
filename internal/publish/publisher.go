// Package publish streams a loaded snapshot to a message broker in batches.
package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/collision-dashboard/internal/dataset"
	"github.com/couchcryptid/collision-dashboard/internal/domain"
	"github.com/couchcryptid/collision-dashboard/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchLoader writes multiple records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, loadedAt time.Time, records []domain.Collision) error
}

// Publisher writes every record of a snapshot, retrying failed batches.
type Publisher struct {
	loader    BatchLoader
	batchSize int
	logger    *slog.Logger
	metrics   *observability.Metrics

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates a Publisher. batchSize below 1 is treated as 1.
func New(l BatchLoader, batchSize int, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		loader:         l,
		batchSize:      max(batchSize, 1),
		logger:         logger,
		metrics:        metrics,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Publish writes the snapshot's records in order and returns how many were
// written. A failed batch is retried with exponential backoff until it succeeds
// or ctx is cancelled, in which case the context error is returned.
func (p *Publisher) Publish(ctx context.Context, snap *dataset.Snapshot) (int, error) {
	start := time.Now()
	p.logger.Info("publish started",
		"source", snap.Source,
		"records", len(snap.Records),
		"batch_size", p.batchSize,
	)

	published := 0
	for from := 0; from < len(snap.Records); from += p.batchSize {
		to := min(from+p.batchSize, len(snap.Records))
		batch := snap.Records[from:to]

		if err := p.loadWithRetry(ctx, snap.LoadedAt, batch); err != nil {
			p.logger.Warn("publish stopped", "published", published, "reason", err)
			return published, err
		}
		published += len(batch)
		p.metrics.RecordsPublished.Add(float64(len(batch)))
	}

	p.logger.Info("publish finished", "published", published, "duration", time.Since(start))
	return published, nil
}

func (p *Publisher) loadWithRetry(ctx context.Context, loadedAt time.Time, batch []domain.Collision) error {
	backoff := p.initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.loader.LoadBatch(ctx, loadedAt, batch)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.metrics.PublishErrors.Inc()
		p.logger.Error("load batch failed",
			"error", err,
			"batch_size", len(batch),
			"first_id", batch[0].ID,
			"retry_in", backoff,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, p.maxBackoff)
	}
}
