// Package ingest defines the producer side of the pipeline: anything that
// can fetch a batch of raw articles from an external source and hand them
// to internal/store.RawStore for persistence. Production RSS and
// Telegram-HTML fetchers live outside this module; HTTPJSONSource is kept
// as a worked reference implementation of the interface.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrov/finradar/pkg/models"
)

// Article is a single fetched item, before it has an id or has been
// deduplicated against raw_articles.
type Article struct {
	Title     string
	Link      string
	Summary   string
	Source    string
	FeedURL   string
	Content   string
	Author    string
	Category  string
	ImageURL  string
	Published time.Time
}

// Source fetches the most recent articles from one upstream feed or API.
// A Source knows nothing about storage or deduplication; Runner owns that.
type Source interface {
	Name() string
	FetchLatest(ctx context.Context, limit int) ([]Article, error)
}

func (a Article) toRaw() *models.RawArticle {
	wordCount := len(strings.Fields(a.Content))
	return &models.RawArticle{
		Title:       a.Title,
		Link:        a.Link,
		Published:   a.Published,
		Summary:     a.Summary,
		Source:      a.Source,
		FeedURL:     a.FeedURL,
		Content:     a.Content,
		Author:      a.Author,
		Category:    a.Category,
		ImageURL:    a.ImageURL,
		WordCount:   wordCount,
		ReadingTime: wordCount/200 + 1,
	}
}
