package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/dmitrov/finradar/pkg/models"
)

// NormalizedStore persists NormalizedArticle rows produced by the
// Normalizer.
type NormalizedStore struct {
	db *DB
}

// NewNormalizedStore creates a NormalizedStore.
func NewNormalizedStore(db *DB) *NormalizedStore {
	return &NormalizedStore{db: db}
}

// Insert stores a normalized article and returns its id.
func (s *NormalizedStore) Insert(ctx context.Context, a *models.NormalizedArticle) (int64, error) {
	var id int64
	err := s.db.SQLX().QueryRowContext(ctx, `
		INSERT INTO normalized_articles (
			original_id, title, content, link, source, published_at,
			language_code, entities, quality_score, word_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`,
		a.OriginalID, a.Title, a.Content, a.Link, a.Source, a.PublishedAt,
		a.LanguageCode, pq.Array(a.Entities), a.QualityScore, a.WordCount,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert normalized article: %w", err)
	}
	return id, nil
}

// MaxOriginalID returns the largest original_id among stored normalized
// articles, the Normalizer's high-water mark. Returns 0 if none exist yet.
func (s *NormalizedStore) MaxOriginalID(ctx context.Context) (int64, error) {
	var maxID int64
	err := s.db.SQLX().GetContext(ctx, &maxID, `
		SELECT COALESCE(MAX(original_id), 0) FROM normalized_articles
	`)
	if err != nil {
		return 0, fmt.Errorf("max original id: %w", err)
	}
	return maxID, nil
}

// NextUnvectorized returns normalized articles with id > lastVectorizedID,
// ascending, up to limit rows.
func (s *NormalizedStore) NextUnvectorized(ctx context.Context, lastVectorizedID int64, limit int) ([]models.NormalizedArticle, error) {
	rows, err := s.db.SQLX().QueryContext(ctx, `
		SELECT id, original_id, title, content, link, source, published_at,
		       language_code, entities, quality_score, word_count, created_at
		FROM normalized_articles
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, lastVectorizedID, limit)
	if err != nil {
		return nil, fmt.Errorf("query unvectorized: %w", err)
	}
	defer rows.Close()

	out := make([]models.NormalizedArticle, 0, limit)
	for rows.Next() {
		var a models.NormalizedArticle
		var entities pq.StringArray
		if err := rows.Scan(
			&a.ID, &a.OriginalID, &a.Title, &a.Content, &a.Link, &a.Source, &a.PublishedAt,
			&a.LanguageCode, &entities, &a.QualityScore, &a.WordCount, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan normalized article: %w", err)
		}
		a.Entities = entities
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get fetches a single normalized article by id, used to load the
// representative article for a cluster.
func (s *NormalizedStore) Get(ctx context.Context, id int64) (*models.NormalizedArticle, error) {
	var a models.NormalizedArticle
	var entities pq.StringArray
	err := s.db.SQLX().QueryRowContext(ctx, `
		SELECT id, original_id, title, content, link, source, published_at,
		       language_code, entities, quality_score, word_count, created_at
		FROM normalized_articles WHERE id = $1
	`, id).Scan(
		&a.ID, &a.OriginalID, &a.Title, &a.Content, &a.Link, &a.Source, &a.PublishedAt,
		&a.LanguageCode, &entities, &a.QualityScore, &a.WordCount, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get normalized article: %w", err)
	}
	a.Entities = entities
	return &a, nil
}
