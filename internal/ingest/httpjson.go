package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
)

// HTTPJSONSource is a worked reference Source: it hits a JSON news API
// shaped like CoinDesk's outbound feed (a flat array of story objects) and
// maps it onto Article. Kept to demonstrate the Source interface is
// dischargeable, not as a production fetcher.
type HTTPJSONSource struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPJSONSource creates a source polling the given URL, expected to
// return a JSON array of stories in the shape this type understands.
func NewHTTPJSONSource(name, url string) *HTTPJSONSource {
	return &HTTPJSONSource{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPJSONSource) Name() string {
	return s.name
}

type httpJSONStory struct {
	ID        string `json:"_id"`
	Type      string `json:"type"`
	Canonical string `json:"canonical_url"`
	Headlines struct {
		Basic string `json:"basic"`
	} `json:"headlines"`
	Description struct {
		Basic string `json:"basic"`
	} `json:"description"`
	Credits struct {
		By []struct {
			Name string `json:"name"`
		} `json:"by"`
	} `json:"credits"`
	DisplayDate time.Time `json:"display_date"`
}

// FetchLatest requests the feed and maps every "story"-typed entry onto an
// Article, skipping anything else (the shape also carries gallery/video
// entries the radar has no use for).
func (s *HTTPJSONSource) FetchLatest(ctx context.Context, limit int) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http error %d: %s", resp.StatusCode, string(body))
	}

	var stories []httpJSONStory
	if err := json.NewDecoder(resp.Body).Decode(&stories); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	articles := make([]Article, 0, len(stories))
	for _, story := range stories {
		if story.Type != "story" {
			continue
		}
		if len(articles) >= limit {
			break
		}

		author := s.name
		if len(story.Credits.By) > 0 {
			author = story.Credits.By[0].Name
		}

		articles = append(articles, Article{
			Title:     story.Headlines.Basic,
			Link:      story.Canonical,
			Summary:   story.Description.Basic,
			Content:   story.Description.Basic,
			Source:    s.name,
			FeedURL:   s.url,
			Author:    author,
			Published: story.DisplayDate,
		})
	}

	logger.Debug("ingest: http json source fetched",
		zap.String("source", s.name), zap.Int("count", len(articles)))

	return articles, nil
}
