package store

import (
	"context"
	"fmt"

	"github.com/dmitrov/finradar/pkg/models"
)

// RawStore persists ingested articles before normalization.
type RawStore struct {
	db *DB
}

// NewRawStore creates a RawStore over the shared connection pool.
func NewRawStore(db *DB) *RawStore {
	return &RawStore{db: db}
}

// Insert appends a raw article. Title is unique; a duplicate title is
// reported as a conflict, not an error, so ingestion can treat it as an
// ordinary dedup-on-title skip.
func (s *RawStore) Insert(ctx context.Context, a *models.RawArticle) (int64, bool, error) {
	var id int64
	err := s.db.SQLX().QueryRowContext(ctx, `
		INSERT INTO raw_articles (
			title, link, published, summary, source, feed_url, content,
			author, category, image_url, word_count, reading_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (title) DO NOTHING
		RETURNING id
	`,
		a.Title, a.Link, a.Published, a.Summary, a.Source, a.FeedURL, a.Content,
		a.Author, a.Category, a.ImageURL, a.WordCount, a.ReadingTime,
	).Scan(&id)

	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("insert raw article: %w", err)
	}
	return id, true, nil
}

// NextUnnormalized returns raw articles with id > maxOriginalID, ascending,
// up to limit rows.
func (s *RawStore) NextUnnormalized(ctx context.Context, maxOriginalID int64, limit int) ([]models.RawArticle, error) {
	rows, err := s.db.SQLX().QueryContext(ctx, `
		SELECT id, title, link, published, summary, source, feed_url, content,
		       author, category, image_url, word_count, reading_time, is_processed, created_at
		FROM raw_articles
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, maxOriginalID, limit)
	if err != nil {
		return nil, fmt.Errorf("query unnormalized: %w", err)
	}
	defer rows.Close()

	out := make([]models.RawArticle, 0, limit)
	for rows.Next() {
		var a models.RawArticle
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Link, &a.Published, &a.Summary, &a.Source, &a.FeedURL, &a.Content,
			&a.Author, &a.Category, &a.ImageURL, &a.WordCount, &a.ReadingTime, &a.IsProcessed, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan raw article: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
