package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/models"
)

const defaultFetchLimit = 50

// RawSink is the subset of internal/store.RawStore a Runner writes to.
type RawSink interface {
	Insert(ctx context.Context, a *models.RawArticle) (id int64, inserted bool, err error)
}

// Runner drives one or more Sources on each tick, inserting whatever they
// return into the raw_articles table and letting the unique-title
// constraint absorb re-fetched duplicates. Implements pkg/worker.Worker.
type Runner struct {
	sources []Source
	sink    RawSink
}

// New creates a Runner over the given sources.
func New(sink RawSink, sources ...Source) *Runner {
	return &Runner{sources: sources, sink: sink}
}

// Name identifies this worker in logs.
func (r *Runner) Name() string {
	return "ingest"
}

// Run fetches from every configured source once, inserting new rows and
// logging (not failing the whole tick on) any one source's error.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	var inserted, skipped int

	for _, src := range r.sources {
		articles, err := src.FetchLatest(ctx, defaultFetchLimit)
		if err != nil {
			logger.Error("ingest: source fetch failed",
				zap.String("source", src.Name()), zap.Error(err))
			continue
		}

		for i := range articles {
			_, ok, err := r.sink.Insert(ctx, articles[i].toRaw())
			if err != nil {
				logger.Error("ingest: insert failed",
					zap.String("source", src.Name()), zap.Error(err))
				continue
			}
			if ok {
				inserted++
			} else {
				skipped++
			}
		}
	}

	logger.Info("ingest tick complete",
		zap.Int("inserted", inserted), zap.Int("skipped_duplicate", skipped),
		zap.Duration("elapsed", time.Since(start)))

	if inserted == 0 && skipped == 0 && len(r.sources) == 0 {
		return fmt.Errorf("ingest: no sources configured")
	}
	return nil
}
