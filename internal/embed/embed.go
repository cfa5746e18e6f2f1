// Package embed implements the Embedder (§4.C): a deterministic
// (title, content) → unit-norm vector function backed by a remote
// embeddings endpoint, with a Redis cache in front of it.
package embed

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
)

const contentPrefixLen = 600

// Client generates embeddings for normalized articles.
type Client struct {
	openai   *openai.Client
	redis    *goredis.Client
	model    string
	cacheTTL time.Duration
}

// Config configures the embedding client.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Redis    *goredis.Client // optional; nil disables caching
	CacheTTL time.Duration
}

// New creates an embedding Client against an OpenAI-compatible embeddings
// endpoint.
func New(cfg Config) *Client {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Client{
		openai:   openai.NewClientWithConfig(oaiCfg),
		redis:    cfg.Redis,
		model:    cfg.Model,
		cacheTTL: ttl,
	}
}

// BuildInput constructs the Embedder's fixed input text from a title and
// content, per §4.C: "title + \" [SEP] \" + content[:600]".
func BuildInput(title, content string) string {
	if len(content) > contentPrefixLen {
		content = content[:contentPrefixLen]
	}
	return title + " [SEP] " + content
}

// Embed returns the L2-normalized embedding for (title, content), using the
// cache when available.
func (c *Client) Embed(ctx context.Context, title, content string) ([]float32, error) {
	text := BuildInput(title, content)

	if c.redis != nil {
		if cached, ok := c.getCached(ctx, text); ok {
			return cached, nil
		}
	}

	resp, err := c.openai.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding API returned no data")
	}

	vec := normalize(resp.Data[0].Embedding)

	if c.redis != nil {
		c.setCached(ctx, text, vec)
	}

	return vec, nil
}

// ModelName returns the configured embedding model's name, recorded with
// every persisted embedding so a model switch forces re-embedding.
func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) cacheKey(text string) string {
	hash := md5.Sum([]byte(text))
	return fmt.Sprintf("embedding:v1:%s:%x", c.model, hash)
}

func (c *Client) getCached(ctx context.Context, text string) ([]float32, bool) {
	data, err := c.redis.Get(ctx, c.cacheKey(text)).Result()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal([]byte(data), &vec); err != nil {
		logger.Warn("failed to deserialize cached embedding", zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *Client) setCached(ctx context.Context, text string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		logger.Warn("failed to serialize embedding for cache", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, c.cacheKey(text), data, c.cacheTTL).Err(); err != nil {
		logger.Warn("failed to cache embedding", zap.Error(err))
	}
}

// normalize L2-normalizes a vector so inner product equals cosine
// similarity, regardless of what the upstream model already did.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f * norm
	}
	return out
}
