package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/lib/pq"

	"github.com/dmitrov/finradar/internal/adapters/clickhouse"
	"github.com/dmitrov/finradar/internal/adapters/redisx"
	"github.com/dmitrov/finradar/internal/adapters/telegram"
	"github.com/dmitrov/finradar/internal/alert"
	"github.com/dmitrov/finradar/internal/config"
	"github.com/dmitrov/finradar/internal/dedup"
	"github.com/dmitrov/finradar/internal/embed"
	"github.com/dmitrov/finradar/internal/enrich"
	"github.com/dmitrov/finradar/internal/health"
	"github.com/dmitrov/finradar/internal/ingest"
	"github.com/dmitrov/finradar/internal/normalize"
	"github.com/dmitrov/finradar/internal/pipeline"
	"github.com/dmitrov/finradar/internal/snapshot"
	"github.com/dmitrov/finradar/internal/store"
	"github.com/dmitrov/finradar/internal/vectorindex"
	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/metrics"
	"github.com/dmitrov/finradar/pkg/worker"
)

const migrationsPath = "./internal/store/migrations"

func main() {
	exportPath := flag.String("export-snapshot", "", "write a cluster snapshot JSON to this path and exit")
	topK := flag.Int("snapshot-top-k", 50, "number of clusters to include in the snapshot export")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nreceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx, *exportPath, *topK); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, exportPath string, topK int) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("finradar pipeline starting")

	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redisx.New(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	metricsBuffer := initMetricsBuffer(cfg)
	if metricsBuffer != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := metricsBuffer.Close(shutdownCtx); err != nil {
				logger.Error("failed to flush metrics buffer", zap.Error(err))
			}
		}()
	}

	stores := initStores(db)

	if exportPath != "" {
		return exportSnapshot(ctx, stores.clusters, exportPath, topK)
	}

	embedder := embed.New(embed.Config{
		APIKey:   cfg.Embedding.APIKey,
		BaseURL:  cfg.Embedding.BaseURL,
		Model:    cfg.Embedding.Model,
		Redis:    redisClient.Raw(),
		CacheTTL: cfg.Embedding.CacheTTL,
	})

	index := vectorindex.New()
	deduplicator := dedup.New(db, stores.normalized, stores.embeddings, stores.clusters, stores.state, index, embedder, metricsBuffer)

	logger.Info("warming up vector index from persisted embeddings...")
	if err := deduplicator.WarmUp(ctx); err != nil {
		return fmt.Errorf("vector index warm-up: %w", err)
	}
	logger.Info("vector index warm-up complete")

	normalizer := normalize.New(stores.raw, stores.normalized, metricsBuffer)
	enricher := enrich.New(enrich.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: float32(cfg.LLM.Temperature),
		MaxRetries:  cfg.LLM.MaxRetries,
	}, stores.clusters, stores.normalized, stores.analyzed, redisClient, metricsBuffer)

	pipelineWorker := pipeline.New(normalizer, deduplicator, enricher, pipeline.Config{
		BatchSize: cfg.Pipeline.BatchSize,
		LLMLimit:  cfg.Pipeline.LLMLimit,
		LLMDelay:  cfg.Pipeline.LLMDelay,
	})

	wg := worker.NewWorkerGroup(ctx)
	wg.Add(pipelineWorker, cfg.Pipeline.CheckInterval)

	if ingestRunner := initIngest(stores.raw); ingestRunner != nil {
		wg.Add(ingestRunner, 10*time.Minute)
	}

	if sender := initAlertSender(cfg); sender != nil {
		notified := redisx.NewNotifiedSet(redisClient, cfg.Alert.NotifiedTTL)
		monitor := alert.New(stores.analyzed, stores.subscribers, notified, sender, alert.Config{
			Threshold:     cfg.Alert.HotnessThreshold,
			CheckInterval: cfg.Alert.CheckInterval,
		})
		wg.Add(monitor, cfg.Alert.CheckInterval)
	} else {
		logger.Warn("telegram bot token not configured, hot-news push alerts disabled")
	}

	wg.Start()

	healthServer := health.NewServer(cfg.Health.Port, db, redisClient)
	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", zap.Error(err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("finradar pipeline ready",
		zap.Duration("check_interval", cfg.Pipeline.CheckInterval),
		zap.String("health_port", cfg.Health.Port),
	)

	<-ctx.Done()

	logger.Info("shutdown signal received, stopping workers...")
	healthServer.SetReady(false)
	wg.Stop(20 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Error("health server stop error", zap.Error(err))
	}

	return nil
}

func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func initDatabase(cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// initMetricsBuffer wires a ClickHouse-backed metrics buffer when
// CH_ENABLED is set; pipeline batch/cycle metrics are a diagnostic nicety,
// not a correctness dependency, so a missing or unreachable ClickHouse
// instance only disables them.
func initMetricsBuffer(cfg *config.Config) metrics.Buffer {
	if !cfg.ClickHouse.Enabled {
		logger.Info("clickhouse metrics disabled (CH_ENABLED=false)")
		return nil
	}

	chDB, err := sqlx.Connect("clickhouse", cfg.ClickHouse.GetDSN())
	if err != nil {
		logger.Warn("clickhouse unavailable, pipeline metrics disabled", zap.Error(err))
		return nil
	}

	repo := clickhouse.NewClickHouseRepository(chDB)
	writer := clickhouse.NewWriter(repo)
	return metrics.NewBufferedMetrics(metrics.BufferConfig{
		Writer:        writer,
		BatchSize:     200,
		FlushInterval: 10 * time.Second,
	})
}

type storeSet struct {
	raw         *store.RawStore
	normalized  *store.NormalizedStore
	embeddings  *store.EmbeddingStore
	clusters    *store.ClusterStore
	analyzed    *store.AnalyzedStore
	subscribers *store.SubscriberStore
	state       *store.StateStore
}

func initStores(db *store.DB) *storeSet {
	return &storeSet{
		raw:         store.NewRawStore(db),
		normalized:  store.NewNormalizedStore(db),
		embeddings:  store.NewEmbeddingStore(db),
		clusters:    store.NewClusterStore(db),
		analyzed:    store.NewAnalyzedStore(db),
		subscribers: store.NewSubscriberStore(db),
		state:       store.NewStateStore(db),
	}
}

// initIngest wires the one reference ingestion source this module ships;
// production RSS/Telegram-HTML fetchers plug into the same Source
// interface from outside this repository.
func initIngest(raw *store.RawStore) *ingest.Runner {
	url := os.Getenv("INGEST_HTTP_JSON_URL")
	if url == "" {
		logger.Info("no ingest sources configured (INGEST_HTTP_JSON_URL unset), skipping ingest worker")
		return nil
	}
	source := ingest.NewHTTPJSONSource("http-json", url)
	return ingest.New(raw, source)
}

// initAlertSender builds the Telegram bot's card-sending capability for
// the hot-news push monitor. It does not start the bot's update loop —
// that belongs to cmd/bot — only the piece alert.Monitor needs.
func initAlertSender(cfg *config.Config) alert.Sender {
	if cfg.Telegram.BotToken == "" {
		return nil
	}
	bot, err := telegram.New(telegram.Config{BotToken: cfg.Telegram.BotToken}, nil, nil, nil, nil, nil)
	if err != nil {
		logger.Warn("failed to initialize telegram sender", zap.Error(err))
		return nil
	}
	return bot
}

func exportSnapshot(ctx context.Context, clusters *store.ClusterStore, path string, topK int) error {
	exporter := snapshot.New(clusters)
	snap, err := exporter.Build(ctx, topK, 48)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}
	data, err := snapshot.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logger.Info("snapshot exported", zap.String("path", path), zap.Int("clusters", len(snap.Clusters)))
	return nil
}
