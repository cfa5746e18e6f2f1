package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/models"
)

const (
	defaultListLimit = 10
	defaultTopHours  = 24
	maxTopHours      = 168
)

func (b *Bot) handleTop(ctx context.Context, chatID int64, args string) {
	limit, hours, err := parseTopArgs(args)
	if err != nil {
		b.sendPlain(chatID, "Invalid arguments. Usage: /top [count] [hours]")
		return
	}

	news, err := b.query.Top(ctx, limit, hours)
	if err != nil {
		logger.Error("telegram: /top failed", zap.Error(err))
		b.sendPlain(chatID, "Failed to load top news. Try again shortly.")
		return
	}
	if len(news) == 0 {
		b.sendPlain(chatID, fmt.Sprintf("No stories in the last %d hours.", hours))
		return
	}

	b.sendNewsList(chatID, news)
}

func (b *Bot) handleLatest(ctx context.Context, chatID int64, args string) {
	limit := defaultListLimit
	if args = strings.TrimSpace(args); args != "" {
		if n, err := strconv.Atoi(args); err == nil {
			limit = n
		}
	}

	news, err := b.query.Latest(ctx, limit)
	if err != nil {
		logger.Error("telegram: /latest failed", zap.Error(err))
		b.sendPlain(chatID, "Failed to load latest news. Try again shortly.")
		return
	}
	if len(news) == 0 {
		b.sendPlain(chatID, "No analyzed news yet.")
		return
	}

	b.sendNewsList(chatID, news)
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) {
	keywords := strings.Fields(args)
	if len(keywords) == 0 {
		b.sendPlain(chatID, "Usage: /search <keywords>")
		return
	}

	news, err := b.query.Search(ctx, keywords, defaultListLimit)
	if err != nil {
		logger.Error("telegram: /search failed", zap.Error(err))
		b.sendPlain(chatID, "Search failed. Try again shortly.")
		return
	}
	if len(news) == 0 {
		b.sendPlain(chatID, fmt.Sprintf("No matches for: %s", strings.Join(keywords, " ")))
		return
	}

	b.sendNewsList(chatID, news)
}

func (b *Bot) handleSubscribe(ctx context.Context, msg *tgbotapi.Message) {
	sub := &models.Subscriber{
		ChatID:    msg.Chat.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
	if err := b.subscribers.Upsert(ctx, sub); err != nil {
		logger.Error("telegram: subscribe failed", zap.Error(err))
		b.sendPlain(msg.Chat.ID, "Failed to subscribe. Try again shortly.")
		return
	}
	b.sendPlain(msg.Chat.ID, "Subscribed. You'll receive an alert whenever a story crosses the hotness threshold.")
}

func (b *Bot) handleUnsubscribe(ctx context.Context, chatID int64) {
	if err := b.subscribers.Deactivate(ctx, chatID); err != nil {
		logger.Error("telegram: unsubscribe failed", zap.Error(err))
		b.sendPlain(chatID, "Failed to unsubscribe. Try again shortly.")
		return
	}
	b.sendPlain(chatID, "Unsubscribed. Use /subscribe to opt back in.")
}

func (b *Bot) handleMyStatus(ctx context.Context, chatID int64) {
	sub, ok, err := b.subscribers.Get(ctx, chatID)
	if err != nil {
		logger.Error("telegram: mystatus failed", zap.Error(err))
		b.sendPlain(chatID, "Failed to load subscription status.")
		return
	}
	if !ok || !sub.IsActive {
		b.sendPlain(chatID, "You are not subscribed. Use /subscribe to start receiving push alerts.")
		return
	}

	last := "never"
	if sub.LastNotificationAt != nil {
		last = sub.LastNotificationAt.Format("2006-01-02 15:04 UTC")
	}

	data := map[string]interface{}{
		"Active":          "yes",
		"SubscribedSince": sub.SubscribedAt.Format("2006-01-02 15:04 UTC"),
		"LastAlert":       last,
	}
	if b.templates != nil && b.templates.TemplateExists("mystatus.tmpl") {
		if text, err := b.templates.ExecuteTemplate("mystatus.tmpl", data); err == nil {
			b.sendPlain(chatID, text)
			return
		}
	}
	b.sendPlain(chatID, fmt.Sprintf("*Subscription status*\n\nActive: yes\nSubscribed since: %s\nLast alert: %s",
		sub.SubscribedAt.Format("2006-01-02 15:04 UTC"), last))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	stats, err := b.stats.Stats(ctx)
	if err != nil {
		logger.Error("telegram: stats failed", zap.Error(err))
		b.sendPlain(chatID, "Failed to load stats. Try again shortly.")
		return
	}

	data := map[string]interface{}{
		"AvgLastHour":     stats.AvgLastHour,
		"AvgLast6Hours":   stats.AvgLast6Hours,
		"AvgLast24Hours":  stats.AvgLast24Hours,
		"CountLast24h":    stats.CountLast24h,
		"HotCountLast24h": stats.HotCountLast24h,
	}
	if b.templates != nil && b.templates.TemplateExists("stats.tmpl") {
		if text, err := b.templates.ExecuteTemplate("stats.tmpl", data); err == nil {
			b.sendPlain(chatID, text)
			return
		}
	}

	b.sendPlain(chatID, fmt.Sprintf(
		"*Hotness over time*\n\n"+
			"Last 1h: %.2f\n"+
			"Last 6h: %.2f\n"+
			"Last 24h: %.2f\n\n"+
			"Stories analyzed (24h): %d\n"+
			"Hot stories (24h, >=0.70): %d",
		stats.AvgLastHour, stats.AvgLast6Hours, stats.AvgLast24Hours,
		stats.CountLast24h, stats.HotCountLast24h,
	))
}

// parseTopArgs parses "/top [count] [hours]", clamping count to [1,20] and
// hours to [1,168] the way the original bot did.
func parseTopArgs(args string) (limit, hours int, err error) {
	limit, hours = defaultListLimit, defaultTopHours
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return limit, hours, nil
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid count: %w", err)
	}
	limit = clamp(n, 1, 20)

	if len(fields) >= 2 {
		h, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid hours: %w", err)
		}
		hours = clamp(h, 1, maxTopHours)
	}

	return limit, hours, nil
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
