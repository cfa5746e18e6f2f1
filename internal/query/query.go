// Package query exposes the read-only AnalyzedNews surface (§4.H) used by
// the Telegram bot: top, latest, search, by-id and hotness stats. The alert
// monitor does not go through this package; it reads hot news from the
// store directly.
package query

import (
	"context"
	"fmt"

	"github.com/dmitrov/finradar/internal/store"
	"github.com/dmitrov/finradar/pkg/models"
)

const (
	maxTopLimit  = 20
	hotThreshold = 0.7
)

// Service wraps internal/store.AnalyzedStore with the request-shaping
// rules from §4.H (limit clamps, default windows).
type Service struct {
	analyzed *store.AnalyzedStore
}

// New creates a query Service.
func New(analyzed *store.AnalyzedStore) *Service {
	return &Service{analyzed: analyzed}
}

// Top returns the hottest analyzed news published within the last `hours`,
// clamped to at most 20 rows.
func (s *Service) Top(ctx context.Context, limit, hours int) ([]models.AnalyzedNews, error) {
	if limit <= 0 || limit > maxTopLimit {
		limit = maxTopLimit
	}
	if hours <= 0 {
		hours = 24
	}
	return s.analyzed.Top(ctx, limit, hours)
}

// Latest returns the most recently analyzed news.
func (s *Service) Latest(ctx context.Context, limit int) ([]models.AnalyzedNews, error) {
	if limit <= 0 || limit > maxTopLimit {
		limit = maxTopLimit
	}
	return s.analyzed.Latest(ctx, limit)
}

// Search matches keywords OR-combined across headline/content and their
// English variants.
func (s *Service) Search(ctx context.Context, keywords []string, limit int) ([]models.AnalyzedNews, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("search requires at least one keyword")
	}
	if limit <= 0 || limit > maxTopLimit {
		limit = maxTopLimit
	}
	return s.analyzed.Search(ctx, keywords, limit)
}

// ByID fetches a single analyzed news row.
func (s *Service) ByID(ctx context.Context, id int64) (*models.AnalyzedNews, error) {
	return s.analyzed.ByID(ctx, id)
}

// Stats returns the aggregate hotness time series backing /stats, a
// generalization of an impact-weighted sentiment summary onto this system's
// rule-based+LLM hotness score.
func (s *Service) Stats(ctx context.Context) (*store.HotnessStats, error) {
	return s.analyzed.HotnessTimeSeries(ctx, hotThreshold)
}
