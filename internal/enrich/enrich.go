// Package enrich implements the LLM Enricher (§4.F): it takes unprocessed
// story clusters, asks an OpenRouter-compatible chat model to score and
// translate the representative article, and persists exactly one analyzed
// row per cluster.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/internal/adapters/redisx"
	"github.com/dmitrov/finradar/internal/store"
	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/metrics"
	"github.com/dmitrov/finradar/pkg/models"
)

// ErrRateLimited and ErrUnauthorized classify the two LLM error conditions
// the enrichment loop needs to react to differently from a generic failure:
// a 429 is worth backing off and retrying later, a 403 means the API key
// or balance needs operator attention and retrying won't help.
var (
	ErrRateLimited = errors.New("llm rate limited")
	ErrUnauthorized = errors.New("llm unauthorized or out of balance")
)

// Config configures the Enricher's LLM client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	MaxRetries  int
}

// Enricher orchestrates LLM analysis of unprocessed story clusters.
type Enricher struct {
	client     *openai.Client
	model      string
	maxTokens  int
	temperature float32
	maxRetries int

	clusters   *store.ClusterStore
	normalized *store.NormalizedStore
	analyzed   *store.AnalyzedStore
	redis      *redisx.Client
	metrics    metrics.Buffer
}

// New creates an Enricher.
func New(cfg Config, clusters *store.ClusterStore, normalized *store.NormalizedStore, analyzed *store.AnalyzedStore, redisClient *redisx.Client, metricsBuf metrics.Buffer) *Enricher {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &Enricher{
		client:      openai.NewClientWithConfig(oaiCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  maxRetries,
		clusters:    clusters,
		normalized:  normalized,
		analyzed:    analyzed,
		redis:       redisClient,
		metrics:     metricsBuf,
	}
}

// Run processes up to limit unprocessed clusters, sleeping delay between
// LLM calls to stay under provider rate limits. Returns the number of
// clusters it wrote an analyzed row for.
func (e *Enricher) Run(ctx context.Context, limit int, delay time.Duration) (int, error) {
	start := time.Now()

	clusters, err := e.clusters.UnprocessedClusters(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("load unprocessed clusters: %w", err)
	}
	if len(clusters) == 0 {
		return 0, nil
	}

	var processed, skipped, failed int
	unauthorizedLogged := false

	for i, c := range clusters {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return processed, ctx.Err()
			case <-time.After(delay):
			}
		}

		ok, err := e.processOne(ctx, c)
		switch {
		case errors.Is(err, ErrRateLimited):
			// transient: the cluster stays unprocessed and is retried next cycle.
			failed++
			logger.Debug("enrich: llm rate limited",
				zap.Int64("cluster_id", c.ID), zap.Error(err))
		case errors.Is(err, ErrUnauthorized):
			failed++
			if !unauthorizedLogged {
				unauthorizedLogged = true
				logger.Error("enrich: llm rejected the request (API key or balance)",
					zap.Int64("cluster_id", c.ID), zap.Error(err))
			}
		case err != nil:
			failed++
			logger.Error("enrich: failed to process cluster",
				zap.Int64("cluster_id", c.ID), zap.Error(err))
		case !ok:
			skipped++
		default:
			processed++
		}
	}

	if e.metrics != nil {
		_ = e.metrics.Add(&metrics.EnrichCycleMetric{
			Timestamp: time.Now(),
			Processed: processed,
			Skipped:   skipped,
			Errors:    failed,
			ElapsedMs: time.Since(start).Milliseconds(),
		})
	}

	return processed, nil
}

// processOne analyzes a single cluster. Returns (false, nil) when the
// cluster was skipped — already analyzed by a concurrent worker, or its
// lock was held — which is the normal, expected outcome of optimistic
// coordination, not a failure.
func (e *Enricher) processOne(ctx context.Context, c models.StoryCluster) (bool, error) {
	exists, err := e.analyzed.ExistsForCluster(ctx, c.ID)
	if err != nil {
		return false, fmt.Errorf("check existing analysis: %w", err)
	}
	if exists {
		return false, nil
	}

	var lock *redisx.ClusterLock
	if e.redis != nil {
		lock = redisx.NewClusterLock(e.redis.LockManager(), c.ID)
		acquired, err := lock.TryAcquire(ctx)
		if err != nil {
			logger.Warn("enrich: lock acquire failed, proceeding without coordination",
				zap.Int64("cluster_id", c.ID), zap.Error(err))
		} else if !acquired {
			return false, nil
		} else {
			defer lock.Release(ctx)
		}
	}

	repID, err := e.clusters.RepresentativeArticle(ctx, c.ID)
	if err != nil {
		return false, fmt.Errorf("representative article: %w", err)
	}
	article, err := e.normalized.Get(ctx, repID)
	if err != nil {
		return false, fmt.Errorf("load representative article: %w", err)
	}

	a, err := e.analyze(ctx, article.Title, article.Content, article.Source, article.PublishedAt.Format(time.RFC3339), article.Link, article.Entities, c.Hotness)
	if err != nil {
		return false, fmt.Errorf("analyze: %w", err)
	}

	_, ok, err := e.analyzed.InsertAnalyzed(ctx, &models.AnalyzedNews{
		NormalizedID:  article.ID,
		ClusterID:     c.ID,
		Headline:      article.Title,
		Content:       article.Content,
		HeadlineEN:    a.HeadlineEN,
		ContentEN:     a.ContentEN,
		URLsJSON:      urlsJSON(c.URLs),
		PublishedTime: article.PublishedAt,
		AIHotness:     a.Hotness,
		Tickers:       a.Tickers,
		Reasoning:     a.Reasoning,
	})
	if err != nil {
		return false, fmt.Errorf("insert analyzed: %w", err)
	}
	if !ok {
		// another worker won the unique-constraint race; not a failure.
		return false, nil
	}

	logger.Info("enrich: cluster analyzed",
		zap.Int64("cluster_id", c.ID),
		zap.Float64("ai_hotness", a.Hotness),
		zap.Strings("tickers", a.Tickers),
	)
	return true, nil
}

// analyze calls the LLM and parses its response, retrying once more on an
// empty response per §4.F / the original client's retry semantics.
func (e *Enricher) analyze(ctx context.Context, headline, content, source, publishedAt, url string, tickers []string, ruleBasedHotness float64) (*analysis, error) {
	userPrompt := buildUserPrompt(headline, content, source, publishedAt, url, tickers, ruleBasedHotness)

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		raw, err := e.complete(ctx, userPrompt)
		if err != nil {
			return nil, err
		}

		a, err := parseResponse(raw)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, errEmptyResponse) {
			return nil, err
		}

		lastErr = err
		logger.Warn("enrich: llm returned empty response, retrying",
			zap.Int("attempt", attempt+1), zap.Int("max_retries", e.maxRetries))
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("llm returned empty response after %d attempts: %w", e.maxRetries, lastErr)
}

func (e *Enricher) complete(ctx context.Context, userPrompt string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyError maps the two provider error conditions operators need to
// tell apart from a generic transport failure.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 403:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		case 429:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
	}
	return fmt.Errorf("llm request failed: %w", err)
}

func urlsJSON(urls []string) string {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "[]"
	}
	return string(b)
}
