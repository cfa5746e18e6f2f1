package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/dmitrov/finradar/internal/adapters/redisx"
	"github.com/dmitrov/finradar/internal/adapters/telegram"
	"github.com/dmitrov/finradar/internal/config"
	"github.com/dmitrov/finradar/internal/enrich"
	"github.com/dmitrov/finradar/internal/health"
	"github.com/dmitrov/finradar/internal/query"
	"github.com/dmitrov/finradar/internal/store"
	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/templates"
)

const (
	migrationsPath = "./internal/store/migrations"
	templatesDir   = "./templates"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nreceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required to run the bot process")
	}

	logger.Info("finradar telegram bot starting")

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

	analyzedStore := store.NewAnalyzedStore(db)
	clusterStore := store.NewClusterStore(db)
	normalizedStore := store.NewNormalizedStore(db)
	subscriberStore := store.NewSubscriberStore(db)

	queryService := query.New(analyzedStore)

	enricher := enrich.New(enrich.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: float32(cfg.LLM.Temperature),
		MaxRetries:  cfg.LLM.MaxRetries,
	}, clusterStore, normalizedStore, analyzedStore, redisClient, nil)

	tmpl, err := templates.NewManager(templatesDir)
	if err != nil {
		logger.Warn("failed to load templates, falling back to plain-text rendering", zap.Error(err))
		tmpl = nil
	}

	bot, err := telegram.New(
		telegram.Config{BotToken: cfg.Telegram.BotToken, AnalysisModel: cfg.LLM.AnalysisModel},
		templateRenderer(tmpl),
		queryService,
		subscriberStore,
		queryService,
		enricher,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	// bot.Run blocks on GetUpdatesChan until ctx is cancelled; it does not
	// fit worker.WorkerGroup's tick-on-interval model, so it runs as a
	// plain background goroutine instead.
	botErrCh := make(chan error, 1)
	go func() { botErrCh <- bot.Run(ctx) }()

	healthServer := health.NewServer(cfg.Health.Port, db, redisClient)
	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", zap.Error(err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("finradar telegram bot ready", zap.String("health_port", cfg.Health.Port))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping bot...")
	case err := <-botErrCh:
		if err != nil {
			logger.Error("telegram bot stopped unexpectedly", zap.Error(err))
		}
	}

	healthServer.SetReady(false)

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

// templateRenderer adapts a possibly-nil *templates.Manager to the
// templates.Renderer interface: a nil *Manager must become a nil
// interface, not a non-nil interface wrapping a nil pointer, or the bot's
// "templates != nil" fallback checks would never trigger.
func templateRenderer(m *templates.Manager) templates.Renderer {
	if m == nil {
		return nil
	}
	return m
}
