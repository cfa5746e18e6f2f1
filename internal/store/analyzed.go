package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dmitrov/finradar/pkg/models"
)

// AnalyzedStore persists the LLM Enricher's exactly-once-per-cluster output.
type AnalyzedStore struct {
	db *DB
}

// NewAnalyzedStore creates an AnalyzedStore.
func NewAnalyzedStore(db *DB) *AnalyzedStore {
	return &AnalyzedStore{db: db}
}

// InsertAnalyzed inserts an analyzed row idempotently on cluster_id. Returns
// (id, true) on success, (0, false) with no error when another worker won
// the race for this cluster — §4.F step 8 treats that as skipped, not error.
func (s *AnalyzedStore) InsertAnalyzed(ctx context.Context, a *models.AnalyzedNews) (int64, bool, error) {
	var id int64
	err := s.db.SQLX().QueryRowContext(ctx, `
		INSERT INTO llm_analyzed_news (
			normalized_id, cluster_id, headline, content, headline_en, content_en,
			urls_json, published_time, ai_hotness, tickers, reasoning
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (cluster_id) DO NOTHING
		RETURNING id
	`,
		a.NormalizedID, a.ClusterID, a.Headline, a.Content, a.HeadlineEN, a.ContentEN,
		a.URLsJSON, a.PublishedTime, a.AIHotness, pq.Array(a.Tickers), a.Reasoning,
	).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("insert analyzed: %w", err)
	}
	return id, true, nil
}

// ExistsForCluster re-checks, under the DB, whether a cluster already has an
// analyzed row — §4.F step 2's race-tolerant guard before doing any LLM work.
func (s *AnalyzedStore) ExistsForCluster(ctx context.Context, clusterID int64) (bool, error) {
	var exists bool
	err := s.db.SQLX().GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM llm_analyzed_news WHERE cluster_id = $1)
	`, clusterID)
	if err != nil {
		return false, fmt.Errorf("exists for cluster: %w", err)
	}
	return exists, nil
}

// Top returns analyzed news published within the last `hours`, ordered by
// hotness then recency.
func (s *AnalyzedStore) Top(ctx context.Context, limit int, hours int) ([]models.AnalyzedNews, error) {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	return s.query(ctx, `
		SELECT id, normalized_id, cluster_id, headline, content, headline_en, content_en,
		       urls_json, published_time, ai_hotness, tickers, reasoning, created_at
		FROM llm_analyzed_news
		WHERE published_time >= $1
		ORDER BY ai_hotness DESC, published_time DESC
		LIMIT $2
	`, cutoff, limit)
}

// Latest returns the most recently created analyzed rows.
func (s *AnalyzedStore) Latest(ctx context.Context, limit int) ([]models.AnalyzedNews, error) {
	return s.query(ctx, `
		SELECT id, normalized_id, cluster_id, headline, content, headline_en, content_en,
		       urls_json, published_time, ai_hotness, tickers, reasoning, created_at
		FROM llm_analyzed_news
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

// Search matches keywords case-insensitively, OR-combined, across headline
// and content (original and English variants).
func (s *AnalyzedStore) Search(ctx context.Context, keywords []string, limit int) ([]models.AnalyzedNews, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	clauses := make([]string, 0, len(keywords))
	args := make([]interface{}, 0, len(keywords)+1)
	for i, kw := range keywords {
		idx := i + 1
		clauses = append(clauses, fmt.Sprintf(
			"(headline ILIKE $%d OR content ILIKE $%d OR headline_en ILIKE $%d OR content_en ILIKE $%d)",
			idx, idx, idx, idx,
		))
		args = append(args, "%"+kw+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, normalized_id, cluster_id, headline, content, headline_en, content_en,
		       urls_json, published_time, ai_hotness, tickers, reasoning, created_at
		FROM llm_analyzed_news
		WHERE %s
		ORDER BY published_time DESC
		LIMIT $%d
	`, joinOR(clauses), len(keywords)+1)

	return s.query(ctx, query, args...)
}

func joinOR(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " OR " + c
	}
	return out
}

// ByID fetches a single analyzed row.
func (s *AnalyzedStore) ByID(ctx context.Context, id int64) (*models.AnalyzedNews, error) {
	rows, err := s.query(ctx, `
		SELECT id, normalized_id, cluster_id, headline, content, headline_en, content_en,
		       urls_json, published_time, ai_hotness, tickers, reasoning, created_at
		FROM llm_analyzed_news WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("analyzed news %d not found", id)
	}
	return &rows[0], nil
}

// HotNewSince returns analyzed rows at or above threshold hotness, created
// within the last windowSeconds — the hot-news push monitor's source query.
func (s *AnalyzedStore) HotNewSince(ctx context.Context, threshold float64, windowSeconds int) ([]models.AnalyzedNews, error) {
	cutoff := time.Now().Add(-time.Duration(windowSeconds) * time.Second)
	return s.query(ctx, `
		SELECT id, normalized_id, cluster_id, headline, content, headline_en, content_en,
		       urls_json, published_time, ai_hotness, tickers, reasoning, created_at
		FROM llm_analyzed_news
		WHERE ai_hotness >= $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, threshold, cutoff)
}

// HotnessStats is the aggregate hotness summary behind /stats, generalized
// from an impact-weighted sentiment time series: instead of a sentiment
// score averaged per window, it averages the rule-based+LLM hotness score.
type HotnessStats struct {
	AvgLastHour    float64 `db:"avg_1h"`
	AvgLast6Hours  float64 `db:"avg_6h"`
	AvgLast24Hours float64 `db:"avg_24h"`
	CountLast24h   int     `db:"count_24h"`
	HotCountLast24h int    `db:"hot_count_24h"`
}

// HotnessTimeSeries aggregates ai_hotness over rolling windows, backing the
// bot's /stats command.
func (s *AnalyzedStore) HotnessTimeSeries(ctx context.Context, hotThreshold float64) (*HotnessStats, error) {
	var st HotnessStats
	err := s.db.SQLX().QueryRowContext(ctx, `
		SELECT
			COALESCE(AVG(ai_hotness) FILTER (WHERE created_at > now() - INTERVAL '1 hour'), 0),
			COALESCE(AVG(ai_hotness) FILTER (WHERE created_at > now() - INTERVAL '6 hours'), 0),
			COALESCE(AVG(ai_hotness) FILTER (WHERE created_at > now() - INTERVAL '24 hours'), 0),
			COUNT(*) FILTER (WHERE created_at > now() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE created_at > now() - INTERVAL '24 hours' AND ai_hotness >= $1)
		FROM llm_analyzed_news
	`, hotThreshold).Scan(
		&st.AvgLastHour, &st.AvgLast6Hours, &st.AvgLast24Hours, &st.CountLast24h, &st.HotCountLast24h,
	)
	if err != nil {
		return nil, fmt.Errorf("hotness time series: %w", err)
	}
	return &st, nil
}

func (s *AnalyzedStore) query(ctx context.Context, query string, args ...interface{}) ([]models.AnalyzedNews, error) {
	rows, err := s.db.SQLX().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyzed news: %w", err)
	}
	defer rows.Close()

	var out []models.AnalyzedNews
	for rows.Next() {
		var a models.AnalyzedNews
		var tickers pq.StringArray
		if err := rows.Scan(
			&a.ID, &a.NormalizedID, &a.ClusterID, &a.Headline, &a.Content, &a.HeadlineEN, &a.ContentEN,
			&a.URLsJSON, &a.PublishedTime, &a.AIHotness, &tickers, &a.Reasoning, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analyzed news: %w", err)
		}
		a.Tickers = tickers
		out = append(out, a)
	}
	return out, rows.Err()
}
