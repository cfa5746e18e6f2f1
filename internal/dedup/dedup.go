// Package dedup implements the Deduplicator/Clusterer (§4.E): it embeds
// each new normalized article, searches the Vector Index for its nearest
// neighbors, decides whether it duplicates an existing article, extends an
// existing story cluster, or starts a new one, then recomputes that
// cluster's hotness.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/internal/embed"
	"github.com/dmitrov/finradar/internal/store"
	"github.com/dmitrov/finradar/internal/vectorindex"
	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/metrics"
	"github.com/dmitrov/finradar/pkg/models"
)

// Deduplicator is the component that turns a stream of normalized articles
// into story clusters.
type Deduplicator struct {
	db         *store.DB
	normalized *store.NormalizedStore
	embeddings *store.EmbeddingStore
	clusters   *store.ClusterStore
	state      *store.StateStore
	index      *vectorindex.Index
	embedder   *embed.Client
	metrics    metrics.Buffer

	// memberCache tracks, for every normalized id already placed in the
	// index, which cluster it belongs to and the bits classify needs to
	// apply the language/window guard — avoids a DB round trip per
	// neighbor during classification.
	memberCache map[int64]candidate
}

// New creates a Deduplicator. index should already be warmed up (or empty,
// for a fresh deployment) via WarmUp.
func New(db *store.DB, normalized *store.NormalizedStore, embeddings *store.EmbeddingStore, clusters *store.ClusterStore, state *store.StateStore, index *vectorindex.Index, embedder *embed.Client, metricsBuf metrics.Buffer) *Deduplicator {
	return &Deduplicator{
		db:          db,
		normalized:  normalized,
		embeddings:  embeddings,
		clusters:    clusters,
		state:       state,
		index:       index,
		embedder:    embedder,
		metrics:     metricsBuf,
		memberCache: make(map[int64]candidate),
	}
}

// WarmUp loads every persisted embedding and cluster membership into the
// in-memory index and member cache, so a restarted process resumes
// classification with full history instead of an empty index.
func (d *Deduplicator) WarmUp(ctx context.Context) error {
	embeddings, err := d.embeddings.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}

	ids := make([]int64, 0, len(embeddings))
	vecs := make([][]float32, 0, len(embeddings))
	for _, e := range embeddings {
		ids = append(ids, e.NormalizedID)
		vecs = append(vecs, e.Vector)

		a, err := d.normalized.Get(ctx, e.NormalizedID)
		if err != nil {
			continue
		}
		clusterID, ok, err := d.clusters.ClusterOf(ctx, e.NormalizedID)
		if err != nil || !ok {
			continue
		}
		d.memberCache[e.NormalizedID] = candidate{
			normalizedID: e.NormalizedID,
			clusterID:    clusterID,
			lang:         a.LanguageCode,
			publishedAt:  a.PublishedAt,
		}
	}
	d.index.AddBatch(ids, vecs)

	logger.Info("dedup warm-up complete", zap.Int("vectors", len(ids)))
	return nil
}

// Run processes up to batchSize newly normalized articles past the last
// recorded high-water mark, classifying each into a cluster. Returns the
// number of articles processed.
func (d *Deduplicator) Run(ctx context.Context, batchSize int) (int, error) {
	start := time.Now()

	st, err := d.state.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pipeline state: %w", err)
	}

	articles, err := d.normalized.NextUnvectorized(ctx, st.LastVectorizedID, batchSize)
	if err != nil {
		return 0, fmt.Errorf("load unvectorized articles: %w", err)
	}
	if len(articles) == 0 {
		return 0, nil
	}

	var duplicates, storyMatches, newClusters int

	for _, a := range articles {
		reason, err := d.processOne(ctx, a)
		if err != nil {
			// stop here so the high-water mark never passes this article;
			// it is retried first on the next run.
			logger.Error("dedup: failed to process article",
				zap.Int64("normalized_id", a.ID), zap.Error(err))
			break
		}

		switch {
		case reason == "new":
			newClusters++
		case len(reason) >= 3 && reason[:3] == "dup":
			duplicates++
		default:
			storyMatches++
		}

		if err := d.state.SetLastVectorizedID(ctx, a.ID); err != nil {
			logger.Error("dedup: failed to advance high-water mark", zap.Error(err))
		}
	}

	processed := duplicates + storyMatches + newClusters

	if d.metrics != nil {
		_ = d.metrics.Add(&metrics.DedupCycleMetric{
			Timestamp:     time.Now(),
			DocsProcessed: processed,
			Duplicates:    duplicates,
			StoryMatches:  storyMatches,
			NewClusters:   newClusters,
			ElapsedMs:     time.Since(start).Milliseconds(),
		})
	}

	return processed, nil
}

// processOne embeds, classifies and clusters a single normalized article,
// then recomputes the hotness of whichever cluster it landed in. Steps
// 4-7 of §4.E (save embedding through hotness recompute, plus advancing
// last_clustered_id) run inside one transaction: a failure partway through
// rolls back the whole write, leaving no cluster with a doc_count/urls
// inconsistent with its stored factors/hotness. The in-memory index and
// member cache are only updated after that transaction commits, so a
// rolled-back article never becomes a phantom neighbor. It returns the
// classification reason ("dup@...", "story@...", "new") for the caller's
// cycle-level tally.
func (d *Deduplicator) processOne(ctx context.Context, a models.NormalizedArticle) (string, error) {
	vec, err := d.embedder.Embed(ctx, a.Title, a.Content)
	if err != nil {
		return "", fmt.Errorf("embed article: %w", err)
	}

	neighbors := d.index.Search(vec, kNeighbors)

	dec := classify(a.ID, a.LanguageCode, a.PublishedAt, neighbors, func(id int64) (candidate, bool) {
		c, ok := d.memberCache[id]
		return c, ok
	})

	tx, err := d.db.BeginTxx(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := d.embeddings.SaveTx(ctx, tx, &models.Embedding{
		NormalizedID: a.ID,
		Vector:       vec,
		ModelName:    d.embedder.ModelName(),
		Dim:          len(vec),
	}); err != nil {
		return "", fmt.Errorf("save embedding: %w", err)
	}

	clusterID := dec.clusterID
	if dec.isNew {
		clusterID, err = d.clusters.CreateClusterTx(ctx, tx, a.Title, a.LanguageCode, a.PublishedAt, a.Source, a.Link)
		if err != nil {
			return "", fmt.Errorf("create cluster: %w", err)
		}
	}

	if err := d.clusters.AddMemberTx(ctx, tx, clusterID, a.ID, a.Link, a.Source, a.PublishedAt); err != nil {
		return "", fmt.Errorf("add member: %w", err)
	}

	if err := d.recompute(ctx, tx, clusterID); err != nil {
		return "", fmt.Errorf("recompute cluster: %w", err)
	}

	if err := d.state.SetLastClusteredIDTx(ctx, tx, a.ID); err != nil {
		return "", fmt.Errorf("advance clustered high-water mark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit cluster update: %w", err)
	}

	d.index.Add(a.ID, vec)
	d.memberCache[a.ID] = candidate{
		normalizedID: a.ID,
		clusterID:    clusterID,
		lang:         a.LanguageCode,
		publishedAt:  a.PublishedAt,
	}

	logger.Debug("dedup: classified article",
		zap.Int64("normalized_id", a.ID),
		zap.Int64("cluster_id", clusterID),
		zap.String("reason", dec.reason),
	)

	return dec.reason, nil
}

// recompute rebuilds a cluster's aggregates (domain/url set, time window,
// summary links) and its hotness score from its current membership, inside
// the same transaction processOne opened, the same way the Deduplicator
// does after every new member is added.
func (d *Deduplicator) recompute(ctx context.Context, tx *sqlx.Tx, clusterID int64) error {
	members, err := d.clusters.MembersTx(ctx, tx, clusterID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	if len(members) == 0 {
		return nil
	}

	domains := map[string]int{}
	urls := make([]string, 0, len(members))
	firstTime := members[0].TimeUTC
	lastTime := members[0].TimeUTC
	earliest := members[0]
	latest := members[0]
	strongest := members[0]
	strongestWeight := sourceWeight(members[0].Site)

	for _, m := range members {
		domains[domain(m.Site)]++
		urls = append(urls, m.URL)

		if m.TimeUTC.Before(firstTime) {
			firstTime = m.TimeUTC
			earliest = m
		}
		if m.TimeUTC.After(lastTime) {
			lastTime = m.TimeUTC
			latest = m
		}
		// §4.E step 6: max source weight, ties broken by most recent.
		// Members() returns rows ordered by time_utc ascending, so a
		// later member with an equal weight always overwrites an earlier
		// one here.
		if w := sourceWeight(m.Site); w > strongestWeight || (w == strongestWeight && m.TimeUTC.After(strongest.TimeUTC)) {
			strongestWeight = w
			strongest = m
		}
	}

	if err := d.clusters.UpdateAggregatesTx(ctx, tx, clusterID, domains, urls, firstTime, lastTime, len(members)); err != nil {
		return fmt.Errorf("update aggregates: %w", err)
	}
	if err := d.clusters.UpdateSummaryTx(ctx, tx, clusterID, earliest.URL, latest.URL, domain(strongest.Site)); err != nil {
		return fmt.Errorf("update summary: %w", err)
	}

	ageHours := time.Since(firstTime).Hours()
	factors := computeFactors(ageHours, domains)
	hotness := factors.hotness()

	if err := d.clusters.UpdateScoreTx(ctx, tx, clusterID, factors.asMap(), hotness); err != nil {
		return fmt.Errorf("update score: %w", err)
	}

	if d.metrics != nil {
		_ = d.metrics.Add(&metrics.HotnessSnapshotMetric{
			Timestamp: time.Now(),
			ClusterID: clusterID,
			Hotness:   hotness,
			DocCount:  len(members),
		})
	}

	return nil
}
