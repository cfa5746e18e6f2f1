// Package models holds the radar's domain entities, shared by the store,
// pipeline and query layers.
package models

import "time"

// RawArticle is a news item as first persisted by ingestion; unnormalized.
type RawArticle struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Link        string    `db:"link"`
	Published   time.Time `db:"published"`
	Summary     string    `db:"summary"`
	Source      string    `db:"source"`
	FeedURL     string    `db:"feed_url"`
	Content     string    `db:"content"`
	Author      string    `db:"author"`
	Category    string    `db:"category"`
	ImageURL    string    `db:"image_url"`
	WordCount   int       `db:"word_count"`
	ReadingTime int       `db:"reading_time"`
	IsProcessed bool      `db:"is_processed"`
	CreatedAt   time.Time `db:"created_at"`
}

// NormalizedArticle is a cleaned, language-tagged, quality-scored article
// suitable for embedding.
type NormalizedArticle struct {
	ID           int64     `db:"id"`
	OriginalID   int64     `db:"original_id"`
	Title        string    `db:"title"`
	Content      string    `db:"content"`
	Link         string    `db:"link"`
	Source       string    `db:"source"`
	PublishedAt  time.Time `db:"published_at"`
	LanguageCode string    `db:"language_code"`
	Entities     []string  `db:"entities"`
	QualityScore float64   `db:"quality_score"`
	WordCount    int       `db:"word_count"`
	CreatedAt    time.Time `db:"created_at"`
}

// Embedding is the unit-norm vector representation of a NormalizedArticle.
type Embedding struct {
	NormalizedID int64     `db:"normalized_id"`
	Vector       []float32 `db:"-"`
	ModelName    string    `db:"model_name"`
	Dim          int       `db:"dim"`
}

// StoryCluster is a set of NormalizedArticles judged to describe the same
// event.
type StoryCluster struct {
	ID              int64          `db:"id"`
	Headline        string         `db:"headline"`
	Lang            string         `db:"lang"`
	FirstTime       time.Time      `db:"first_time"`
	LastTime        time.Time      `db:"last_time"`
	Domains         map[string]int `db:"-"`
	URLs            []string       `db:"urls"`
	DocCount        int            `db:"doc_count"`
	StrongestDomain string         `db:"strongest_domain"`
	EarliestURL     string         `db:"earliest_url"`
	LatestURL       string         `db:"latest_url"`
	Factors         map[string]float64 `db:"-"`
	Hotness         float64        `db:"hotness"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// ClusterMember links a NormalizedArticle to the StoryCluster it belongs to.
// Immutable after insert; a normalized article belongs to at most one
// cluster.
type ClusterMember struct {
	ClusterID    int64     `db:"cluster_id"`
	NormalizedID int64     `db:"normalized_id"`
	URL          string    `db:"url"`
	Site         string    `db:"site"`
	TimeUTC      time.Time `db:"time_utc"`
}

// AnalyzedNews is the LLM-generated analytical card attached to a story
// cluster; unique per cluster.
type AnalyzedNews struct {
	ID             int64     `db:"id"`
	NormalizedID   int64     `db:"normalized_id"`
	ClusterID      int64     `db:"cluster_id"`
	Headline       string    `db:"headline"`
	Content        string    `db:"content"`
	HeadlineEN     string    `db:"headline_en"`
	ContentEN      string    `db:"content_en"`
	URLsJSON       string    `db:"urls_json"`
	PublishedTime  time.Time `db:"published_time"`
	AIHotness      float64   `db:"ai_hotness"`
	Tickers        []string  `db:"tickers"`
	Reasoning      string    `db:"reasoning"`
	CreatedAt      time.Time `db:"created_at"`
}

// Subscriber is a Telegram user who opted in to hot-news push alerts.
type Subscriber struct {
	ChatID             int64      `db:"chat_id"`
	Username           string     `db:"username"`
	FirstName          string     `db:"first_name"`
	LastName           string     `db:"last_name"`
	SubscribedAt       time.Time  `db:"subscribed_at"`
	IsActive           bool       `db:"is_active"`
	LastNotificationAt *time.Time `db:"last_notification_at"`
}

// PipelineState is the singleton row tracking the pipeline's high-water
// marks.
type PipelineState struct {
	LastVectorizedID int64 `db:"last_vectorized_id"`
	LastClusteredID  int64 `db:"last_clustered_id"`
}

// BatchLog summarizes one Normalizer batch run.
type BatchLog struct {
	BatchID   string
	Total     int
	Processed int
	Filtered  int
	Errors    int
	Elapsed   time.Duration
}
