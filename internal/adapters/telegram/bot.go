// Package telegram implements the bot command surface and card rendering
// behind §4.H's Query & Alert Surface: it serves /top, /latest, /search,
// /subscribe, /unsubscribe, /mystatus, /stats, and the analyze_<id> inline
// callback, and implements internal/alert.Sender for the hot-news push
// monitor.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/internal/enrich"
	"github.com/dmitrov/finradar/internal/store"
	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/models"
	"github.com/dmitrov/finradar/pkg/templates"
)

// QueryService is the subset of internal/query.Service the bot reads from.
type QueryService interface {
	Top(ctx context.Context, limit, hours int) ([]models.AnalyzedNews, error)
	Latest(ctx context.Context, limit int) ([]models.AnalyzedNews, error)
	Search(ctx context.Context, keywords []string, limit int) ([]models.AnalyzedNews, error)
	ByID(ctx context.Context, id int64) (*models.AnalyzedNews, error)
}

// SubscriberService is the subset of internal/store.SubscriberStore the bot
// drives for /subscribe, /unsubscribe and /mystatus.
type SubscriberService interface {
	Upsert(ctx context.Context, sub *models.Subscriber) error
	Deactivate(ctx context.Context, chatID int64) error
	Get(ctx context.Context, chatID int64) (*models.Subscriber, bool, error)
}

// StatsProvider is the subset of internal/query.Service backing /stats.
type StatsProvider interface {
	Stats(ctx context.Context) (*store.HotnessStats, error)
}

// Analyzer runs the deeper analyze_<id> pass; implemented by internal/enrich.Enricher.
type Analyzer interface {
	AnalyzeNews(ctx context.Context, newsID int64, cfg enrich.DetailConfig) (string, error)
}

// Config configures the bot's token and the model used for the analyze_<id>
// deep-dive callback.
type Config struct {
	BotToken      string
	AnalysisModel string
}

// Bot is the Telegram bot adapter: a pkg/worker.Worker-compatible command
// listener that also implements internal/alert.Sender.
type Bot struct {
	api           *tgbotapi.BotAPI
	templates     templates.Renderer
	query         QueryService
	subscribers   SubscriberService
	stats         StatsProvider
	analyzer      Analyzer
	analysisModel string
}

// New creates the Telegram bot adapter.
func New(cfg Config, tmpl templates.Renderer, query QueryService, subscribers SubscriberService, stats StatsProvider, analyzer Analyzer) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	logger.Info("telegram bot initialized", zap.String("username", api.Self.UserName))

	return &Bot{
		api:           api,
		templates:     tmpl,
		query:         query,
		subscribers:   subscribers,
		stats:         stats,
		analyzer:      analyzer,
		analysisModel: cfg.AnalysisModel,
	}, nil
}

// Name identifies this worker in logs.
func (b *Bot) Name() string {
	return "telegram-bot"
}

// Run listens for updates until ctx is cancelled, satisfying pkg/worker.Worker
// as a long-running (non-periodic) worker.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	logger.Info("telegram bot listening for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			switch {
			case update.Message != nil && update.Message.IsCommand():
				go b.handleCommand(ctx, update.Message)
			case update.CallbackQuery != nil:
				go b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	command := msg.Command()
	args := msg.CommandArguments()

	logger.Info("telegram command received",
		zap.String("command", command), zap.Int64("chat_id", msg.Chat.ID))

	switch command {
	case "start":
		b.sendPlain(msg.Chat.ID, welcomeMessage)
	case "help":
		b.sendPlain(msg.Chat.ID, helpMessage)
	case "top":
		b.handleTop(ctx, msg.Chat.ID, args)
	case "latest":
		b.handleLatest(ctx, msg.Chat.ID, args)
	case "search":
		b.handleSearch(ctx, msg.Chat.ID, args)
	case "subscribe":
		b.handleSubscribe(ctx, msg)
	case "unsubscribe":
		b.handleUnsubscribe(ctx, msg.Chat.ID)
	case "mystatus":
		b.handleMyStatus(ctx, msg.Chat.ID)
	case "stats":
		b.handleStats(ctx, msg.Chat.ID)
	default:
		b.sendPlain(msg.Chat.ID, fmt.Sprintf("Unknown command: /%s\nUse /help to see available commands.", command))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	ack := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Request(ack); err != nil {
		logger.Warn("telegram: callback ack failed", zap.Error(err))
	}

	const analyzePrefix = "analyze_"
	if len(cb.Data) <= len(analyzePrefix) || cb.Data[:len(analyzePrefix)] != analyzePrefix {
		return
	}

	var newsID int64
	if _, err := fmt.Sscanf(cb.Data[len(analyzePrefix):], "%d", &newsID); err != nil {
		return
	}

	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	b.editOrSend(chatID, msgID, "Generating detailed analysis...")

	text, err := b.analyzer.AnalyzeNews(ctx, newsID, enrich.DetailConfig{Model: b.analysisModel})
	if err != nil {
		logger.Warn("telegram: analyze_id failed", zap.Int64("news_id", newsID), zap.Error(err))
		b.editOrSend(chatID, msgID, "Analysis unavailable — please try again later.")
		return
	}

	b.editOrSend(chatID, msgID, text)
}

func (b *Bot) editOrSend(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, sanitizeMarkdown(text))
	edit.ParseMode = "Markdown"
	if _, err := b.api.Send(edit); err != nil {
		logger.Warn("telegram: edit failed, falling back to plain text", zap.Error(err))
		plain := tgbotapi.NewEditMessageText(chatID, messageID, escapePlain(text))
		if _, err := b.api.Send(plain); err != nil {
			logger.Warn("telegram: plain-text fallback edit failed", zap.Error(err))
		}
	}
}

// sendPlain sends a Markdown message, falling back to an escaped plain-text
// render if the backend rejects the Markdown payload — the rendering
// contract's required fallback.
func (b *Bot) sendPlain(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, sanitizeMarkdown(text))
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		logger.Warn("telegram: markdown send failed, falling back to plain text", zap.Error(err))
		fallback := tgbotapi.NewMessage(chatID, escapePlain(text))
		if _, ferr := b.api.Send(fallback); ferr != nil {
			logger.Error("telegram: plain-text fallback send failed", zap.Error(ferr))
		}
	}
}

const welcomeMessage = `*Welcome to the financial news radar bot.*

I track breaking financial news across RSS and Telegram sources, cluster duplicate coverage into single stories, and score each one for hotness.

Use /help to see available commands.`

const helpMessage = `*Available commands:*

/top [count] [hours] - hottest stories in a time window (default 10 / 24h)
/latest [count] - most recently analyzed stories
/search <keywords> - search headlines and content
/subscribe - receive push alerts for hot breaking stories
/unsubscribe - stop push alerts
/mystatus - your subscription status
/stats - aggregate hotness over the last 1h/6h/24h`
