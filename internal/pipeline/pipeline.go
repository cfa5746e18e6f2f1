// Package pipeline wires the Normalizer, Deduplicator and Enricher into a
// single periodic worker (§4.G): one tick walks raw articles through
// normalization, clustering and LLM enrichment in sequence, skipping a
// downstream stage entirely when its upstream stage produced nothing.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
)

// Normalizer is the subset of internal/normalize.Normalizer the pipeline
// drives.
type Normalizer interface {
	Run(ctx context.Context, batchSize int) (int, error)
}

// Deduplicator is the subset of internal/dedup.Deduplicator the pipeline
// drives.
type Deduplicator interface {
	Run(ctx context.Context, batchSize int) (int, error)
}

// Enricher is the subset of internal/enrich.Enricher the pipeline drives.
type Enricher interface {
	Run(ctx context.Context, limit int, delay time.Duration) (int, error)
}

// Config bounds how much work a single pipeline tick does.
type Config struct {
	BatchSize int
	LLMLimit  int
	LLMDelay  time.Duration
}

// Worker implements pkg/worker.Worker, running Normalize→Dedup→Enrich once
// per invocation.
type Worker struct {
	normalizer   Normalizer
	deduplicator Deduplicator
	enricher     Enricher
	cfg          Config
}

// New creates the pipeline Worker.
func New(normalizer Normalizer, deduplicator Deduplicator, enricher Enricher, cfg Config) *Worker {
	return &Worker{
		normalizer:   normalizer,
		deduplicator: deduplicator,
		enricher:     enricher,
		cfg:          cfg,
	}
}

// Name identifies this worker in logs.
func (w *Worker) Name() string {
	return "pipeline"
}

// Run executes one normalize→dedup→enrich pass. When normalization produced
// nothing this tick, dedup and enrich are skipped; when dedup produced
// nothing, enrich is skipped. Stage errors are logged, never returned.
func (w *Worker) Run(ctx context.Context) error {
	start := time.Now()

	normalized, err := w.normalizer.Run(ctx, w.cfg.BatchSize)
	if err != nil {
		logger.Error("pipeline: normalize stage failed", zap.Error(err))
	}
	if normalized == 0 {
		logger.Info("pipeline tick: nothing normalized, skipping dedup and enrich",
			zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	clustered, err := w.deduplicator.Run(ctx, w.cfg.BatchSize)
	if err != nil {
		logger.Error("pipeline: dedup stage failed", zap.Error(err))
	}

	var analyzed int
	if clustered > 0 {
		analyzed, err = w.enricher.Run(ctx, w.cfg.LLMLimit, w.cfg.LLMDelay)
		if err != nil {
			logger.Error("pipeline: enrich stage failed", zap.Error(err))
		}
	}

	logger.Info("pipeline tick complete",
		zap.Int("normalized", normalized),
		zap.Int("clustered", clustered),
		zap.Int("analyzed", analyzed),
		zap.Duration("elapsed", time.Since(start)),
	)

	return nil
}
