package enrich

import (
	"fmt"
	"strings"
)

const contentPromptLen = 2000

// systemPrompt instructs the model to behave as a strict financial analyst
// and return nothing but the JSON object described below.
const systemPrompt = `You are a strict financial analyst. Score the news story below using the multi-factor hotness formula and respond with JSON only, no prose.

hotness = scale + market_impact + urgency + novelty + materiality (each in its stated range, sum clipped to [0,1])

scale (0-0.30): global events score highest, local/insignificant events near 0.
market_impact (0-0.30): immediate market-moving events score highest.
urgency (0-0.20): events needing immediate reaction score highest.
novelty (0-0.20): unprecedented or rare events score highest.
materiality (0-0.10): named companies/tickers with concrete figures score highest.

If the story is not about finance, markets or the economy, hotness must be 0.00-0.10, tickers must be empty, and reasoning must say so.

Extract every ticker, crypto symbol, index or currency code mentioned.

Respond with exactly this JSON shape:
{"hotness": 0.583, "tickers": ["BTC", "USD"], "reasoning": "scale=0.15, market_impact=0.22, urgency=0.12, novelty=0.08, materiality=0.01", "headline_en": "...", "content_en": "..."}`

// buildUserPrompt assembles the analyst's brief for one representative
// article: headline, a content excerpt, known entities, source, timestamp,
// link and the rule-based hotness already computed by the Deduplicator —
// giving the model a prior to refine rather than invent from scratch.
func buildUserPrompt(headline, content, source, publishedAt, url string, tickers []string, ruleBasedHotness float64) string {
	if len(content) > contentPromptLen {
		content = content[:contentPromptLen]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HEADLINE: %s\n", headline)
	fmt.Fprintf(&b, "BODY: %s\n", content)
	if len(tickers) > 0 {
		fmt.Fprintf(&b, "KNOWN ENTITIES: %s\n", strings.Join(tickers, ", "))
	}
	fmt.Fprintf(&b, "SOURCE: %s\n", source)
	fmt.Fprintf(&b, "PUBLISHED: %s\n", publishedAt)
	fmt.Fprintf(&b, "URL: %s\n", url)
	fmt.Fprintf(&b, "RULE-BASED HOTNESS PRIOR: %.3f\n", ruleBasedHotness)
	return b.String()
}
