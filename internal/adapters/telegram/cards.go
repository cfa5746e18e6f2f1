package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/models"
)

// SendCard implements internal/alert.Sender: it renders one analyzed news
// row as a card and pushes it to chatID, attaching the analyze_<id> button
// for the deeper on-demand analysis.
func (b *Bot) SendCard(ctx context.Context, chatID int64, news *models.AnalyzedNews) error {
	text := b.formatCard(news, 1, 1, "Hot story")
	msg := tgbotapi.NewMessage(chatID, sanitizeMarkdown(text))
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = analyzeKeyboard(news.ID)

	if _, err := b.api.Send(msg); err != nil {
		logger.Warn("telegram: card send failed, falling back to plain text", zap.Error(err))
		fallback := tgbotapi.NewMessage(chatID, escapePlain(text))
		fallback.ReplyMarkup = analyzeKeyboard(news.ID)
		if _, ferr := b.api.Send(fallback); ferr != nil {
			return fmt.Errorf("send card: %w", ferr)
		}
	}
	return nil
}

// sendNewsList pushes one card per row, matching the original bot's
// one-message-per-story behavior rather than batching into a single wall of
// text.
func (b *Bot) sendNewsList(chatID int64, news []models.AnalyzedNews) {
	for i := range news {
		text := b.formatCard(&news[i], i+1, len(news), "")
		msg := tgbotapi.NewMessage(chatID, sanitizeMarkdown(text))
		msg.ParseMode = "Markdown"
		msg.DisableWebPagePreview = true
		msg.ReplyMarkup = analyzeKeyboard(news[i].ID)

		if _, err := b.api.Send(msg); err != nil {
			logger.Warn("telegram: list item send failed, falling back to plain text", zap.Error(err))
			fallback := tgbotapi.NewMessage(chatID, escapePlain(text))
			if _, ferr := b.api.Send(fallback); ferr != nil {
				logger.Error("telegram: list item plain-text fallback failed", zap.Error(ferr))
			}
		}
	}
}

func analyzeKeyboard(newsID int64) tgbotapi.InlineKeyboardMarkup {
	button := tgbotapi.NewInlineKeyboardButtonData("Detailed analysis", fmt.Sprintf("analyze_%d", newsID))
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button))
}

// formatCard renders the compact per-story summary shown by /top, /latest,
// /search and the push alert, via the card.tmpl template. header overrides
// the "#i/n Story" label when non-empty, used by the push alert to say "Hot
// story" instead of an index. Falls back to a plain Sprintf render if the
// template isn't loaded — e.g. in tests that construct a Bot without a
// templates directory.
func (b *Bot) formatCard(news *models.AnalyzedNews, index, total int, header string) string {
	label := header
	if label == "" {
		label = fmt.Sprintf("#%d/%d Story", index, total)
	}

	tickers := "—"
	if len(news.Tickers) > 0 {
		tickers = strings.Join(news.Tickers, ", ")
	}

	urls := parseURLsJSON(news.URLsJSON)
	if len(urls) > 3 {
		urls = urls[:3]
	}
	sources := "—"
	if len(urls) > 0 {
		lines := make([]string, len(urls))
		for i, u := range urls {
			lines[i] = "- " + truncateURL(u)
		}
		sources = strings.Join(lines, "\n")
	}

	data := map[string]interface{}{
		"Emoji":     hotnessEmoji(news.AIHotness),
		"Label":     label,
		"Headline":  news.HeadlineEN,
		"Hotness":   news.AIHotness,
		"Tickers":   tickers,
		"Published": news.PublishedTime.Format("2006-01-02 15:04"),
		"Sources":   sources,
	}

	if b.templates != nil && b.templates.TemplateExists("card.tmpl") {
		if text, err := b.templates.ExecuteTemplate("card.tmpl", data); err == nil {
			return text
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n\n", hotnessEmoji(news.AIHotness), label)
	fmt.Fprintf(&sb, "*%s*\n\n", news.HeadlineEN)
	fmt.Fprintf(&sb, "Hotness: %.2f/1.00\n", news.AIHotness)
	fmt.Fprintf(&sb, "Tickers: %s\n", tickers)
	fmt.Fprintf(&sb, "Published: %s\n\n", news.PublishedTime.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Sources:\n%s", sources)
	return sb.String()
}

func hotnessEmoji(hotness float64) string {
	switch {
	case hotness >= 0.8:
		return "[HOT]"
	case hotness >= 0.6:
		return "[WARM]"
	default:
		return "[WATCH]"
	}
}

func truncateURL(u string) string {
	const maxLen = 50
	if len(u) <= maxLen {
		return u
	}
	return u[:maxLen-3] + "..."
}

func parseURLsJSON(raw string) []string {
	var urls []string
	_ = json.Unmarshal([]byte(raw), &urls)
	return urls
}
