package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds configuration shared by the radar pipeline process and the
// Telegram bot process.
type Config struct {
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
	Health     HealthConfig     `envconfig:"HEALTH"`
	Pipeline   PipelineConfig   `envconfig:"PIPELINE"`
	LLM        LLMConfig        `envconfig:"LLM"`
	Embedding  EmbeddingConfig  `envconfig:"EMBEDDING"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Alert      AlertConfig      `envconfig:"ALERT"`
}

// DatabaseConfig holds Postgres connection parameters.
type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Name     string `envconfig:"POSTGRES_DB" default:"finradar"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"false" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ClickHouseConfig holds ClickHouse connection parameters for pipeline metrics.
type ClickHouseConfig struct {
	Host     string `envconfig:"CH_HOST" default:"localhost"`
	Database string `envconfig:"CH_DATABASE" default:"finradar"`
	User     string `envconfig:"CH_USER" default:"default"`
	Password string `envconfig:"CH_PASSWORD" default:""`
	Port     int    `envconfig:"CH_PORT" default:"9000"`
	Enabled  bool   `envconfig:"CH_ENABLED" default:"false"`
}

// GetDSN returns the ClickHouse DSN.
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// RedisConfig holds Redis connection parameters (embedding cache, notified
// set, distributed locks).
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false" default:""`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Addr returns host:port for go-redis.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:"logs/radar.log"`
}

// HealthConfig controls the liveness/readiness HTTP server.
type HealthConfig struct {
	Port string `envconfig:"HEALTH_PORT" default:"8080"`
}

// PipelineConfig controls the normalize/dedup/enrich worker cadence (§6).
type PipelineConfig struct {
	CheckInterval time.Duration `envconfig:"PIPELINE_CHECK_INTERVAL" default:"300s"`
	BatchSize     int           `envconfig:"PIPELINE_BATCH_SIZE" default:"100"`
	LLMLimit      int           `envconfig:"PIPELINE_LLM_LIMIT" default:"50"`
	LLMDelay      time.Duration `envconfig:"LLM_DELAY" default:"1s"`
}

// LLMConfig configures the OpenRouter-compatible chat-completions client.
type LLMConfig struct {
	APIKey         string  `envconfig:"OPENROUTER_API_KEY" required:"false"`
	BaseURL        string  `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	Model          string  `envconfig:"LLM_MODEL" default:"deepseek/deepseek-chat"`
	AnalysisModel  string  `envconfig:"LLM_ANALYSIS_MODEL" default:"anthropic/claude-3.5-sonnet"`
	MaxTokens      int     `envconfig:"LLM_MAX_TOKENS" default:"800"`
	Temperature    float64 `envconfig:"LLM_TEMPERATURE" default:"0.2"`
	MaxRetries     int     `envconfig:"LLM_MAX_RETRIES" default:"2"`
}

// EmbeddingConfig configures the embeddings endpoint and cache.
type EmbeddingConfig struct {
	APIKey   string        `envconfig:"EMBEDDING_API_KEY" required:"false"`
	BaseURL  string        `envconfig:"EMBEDDING_BASE_URL" default:"https://api.openai.com/v1"`
	Model    string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	CacheTTL time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"168h"`
}

// TelegramConfig configures the bot process.
type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	AdminID  int64  `envconfig:"TELEGRAM_ADMIN_ID" default:"0"`
}

// AlertConfig controls the hot-news push monitor (§4.H).
type AlertConfig struct {
	HotnessThreshold float64       `envconfig:"ALERT_HOTNESS_THRESHOLD" default:"0.7"`
	CheckInterval    time.Duration `envconfig:"ALERT_CHECK_INTERVAL" default:"60s"`
	NotifiedTTL      time.Duration `envconfig:"ALERT_NOTIFIED_TTL" default:"72h"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline batch_size must be positive")
	}
	if c.Pipeline.LLMLimit <= 0 {
		return fmt.Errorf("pipeline llm_limit must be positive")
	}
	if c.Alert.HotnessThreshold < 0 || c.Alert.HotnessThreshold > 1 {
		return fmt.Errorf("alert hotness_threshold must be in [0,1]")
	}
	return nil
}
