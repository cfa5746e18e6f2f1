package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// detailSystemPrompt drives the deeper, on-demand single-cluster analysis
// behind the analyze_<id> callback (§12 supplemented feature), distinct from
// the batch hotness/ticker pass in prompt.go: it asks for one ready-to-render
// card instead of structured scoring fields.
const detailSystemPrompt = `You are a financial news analyst producing a compact, explainable analytical card for a Telegram bot. Respond with ONLY a JSON object of the shape:
{"analysis_text": "one Markdown-formatted string with escaped newlines"}

The card must contain exactly these fields, in this order, each on its own line(s):
1. TL;DR (20-30 words): what happened and its likely market impact
2. Key facts (2-4 bullet points): concrete facts drawn from the text, no speculation
3. Affected assets: comma-separated tickers, or "—" if none
4. Sentiment: a number from -1 to 1 with a short reason
5. News score: a number from 0 to 1 with its main drivers (sentiment / corroboration / source authority)
6. Recommendation: one of "Monitor" / "Bullish (consider buy)" / "Bearish (consider sell)" / "No action", plus one or two sentences of reasoning
7. Confidence: "Low" / "Medium" / "High", plus a short justification

Use hedged language ("consider", "monitor", "may indicate"); never give direct financial advice. Keep the whole card under 700 characters. Use the same language as the headline.`

// DetailConfig configures the deeper analysis model, independent from the
// batch enrichment model so operators can point LLM_ANALYSIS_MODEL at a
// stronger model without affecting pipeline throughput.
type DetailConfig struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// AnalyzeNews runs the deeper analyze_<id> pass over an already-analyzed
// news row and returns the ready-to-render card text. It never persists
// anything — the result is meant to be shown once, in response to an
// interactive request — and falls back to a locally built card on any LLM
// failure rather than surfacing an error to the chat.
func (e *Enricher) AnalyzeNews(ctx context.Context, newsID int64, cfg DetailConfig) (string, error) {
	news, err := e.analyzed.ByID(ctx, newsID)
	if err != nil {
		return "", fmt.Errorf("load analyzed news: %w", err)
	}

	var urls []string
	_ = json.Unmarshal([]byte(news.URLsJSON), &urls)

	prompt := buildDetailPrompt(news.Headline, news.Content, news.Tickers, news.AIHotness, urls, news.PublishedTime.Format("2006-01-02 15:04"), "")

	model := cfg.Model
	if model == "" {
		model = e.model
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.3
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: detailSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return fallbackCard(news.AIHotness, urls), nil
	}
	if len(resp.Choices) == 0 {
		return fallbackCard(news.AIHotness, urls), nil
	}

	text, err := parseDetailResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return fallbackCard(news.AIHotness, urls), nil
	}
	return text, nil
}

type detailResponse struct {
	AnalysisText string `json:"analysis_text"`
}

func parseDetailResponse(raw string) (string, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))
	cleaned = lastBalancedObject(cleaned)
	cleaned = stripControlChars(cleaned)
	if strings.TrimSpace(cleaned) == "" {
		return "", errEmptyResponse
	}

	var d detailResponse
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return "", fmt.Errorf("parse detail response: %w", err)
	}
	if strings.TrimSpace(d.AnalysisText) == "" {
		return "", fmt.Errorf("detail response missing analysis_text")
	}
	return d.AnalysisText, nil
}

func buildDetailPrompt(headline, content string, tickers []string, hotness float64, urls []string, publishedAt, source string) string {
	tickerStr := "—"
	if len(tickers) > 0 {
		tickerStr = strings.Join(tickers, ", ")
	}
	url := "no link"
	if len(urls) > 0 {
		url = urls[0]
	}
	body := content
	if len(body) > contentPromptLen {
		body = body[:contentPromptLen]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HEADLINE: %s\n", headline)
	fmt.Fprintf(&b, "BODY: %s\n", body)
	fmt.Fprintf(&b, "TICKERS: %s\n", tickerStr)
	fmt.Fprintf(&b, "SOURCE: %s\n", source)
	fmt.Fprintf(&b, "PUBLISHED: %s\n", publishedAt)
	fmt.Fprintf(&b, "URL: %s\n", url)
	fmt.Fprintf(&b, "RULE-BASED HOTNESS PRIOR: %.2f\n", hotness)
	return b.String()
}

// fallbackCard is returned when the analysis model fails or its response
// can't be parsed; it mirrors the shape the model is asked for so the bot
// never shows raw JSON or an error to the user.
func fallbackCard(hotness float64, urls []string) string {
	url := "no link"
	if len(urls) > 0 {
		url = urls[0]
	}
	return fmt.Sprintf(
		"TL;DR: analysis temporarily unavailable — the analysis model failed.\n\n"+
			"Key facts:\n- this story needs manual review\n- automated analysis returned an error\n\n"+
			"Affected assets: —\n"+
			"Sentiment: 0.0 — undetermined\n"+
			"News score: %.2f — rule-based hotness only\n\n"+
			"Recommendation: Monitor — further analysis required\n"+
			"Confidence: Low — automated analysis unavailable\n\n"+
			"%s", hotness, url)
}
