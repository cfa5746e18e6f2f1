// Package normalize implements the Normalizer (§4.B): it turns RawArticles
// into NormalizedArticles, stripping markup, filtering spam, scoring
// quality and extracting light heuristic entities.
package normalize

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/pkg/logger"
	"github.com/dmitrov/finradar/pkg/metrics"
	"github.com/dmitrov/finradar/pkg/models"
)

const minQualityScore = 0.2

// RawSource is the subset of internal/store.RawStore the Normalizer reads
// from.
type RawSource interface {
	NextUnnormalized(ctx context.Context, maxOriginalID int64, limit int) ([]models.RawArticle, error)
}

// NormalizedSink is the subset of internal/store.NormalizedStore the
// Normalizer writes to.
type NormalizedSink interface {
	Insert(ctx context.Context, a *models.NormalizedArticle) (int64, error)
	MaxOriginalID(ctx context.Context) (int64, error)
}

// Normalizer turns a batch of RawArticles into NormalizedArticles.
type Normalizer struct {
	raw     RawSource
	normal  NormalizedSink
	metrics metrics.Buffer // optional; nil disables batch-log persistence
}

// New creates a Normalizer. metricsBuf may be nil.
func New(raw RawSource, normal NormalizedSink, metricsBuf metrics.Buffer) *Normalizer {
	return &Normalizer{raw: raw, normal: normal, metrics: metricsBuf}
}

// Run processes one batch of up to batchSize raw articles, returning how
// many were successfully normalized.
func (n *Normalizer) Run(ctx context.Context, batchSize int) (int, error) {
	start := time.Now()
	batchID := uuid.NewString()

	maxID, err := n.normal.MaxOriginalID(ctx)
	if err != nil {
		return 0, fmt.Errorf("normalizer: %w", err)
	}

	raws, err := n.raw.NextUnnormalized(ctx, maxID, batchSize)
	if err != nil {
		return 0, fmt.Errorf("normalizer: %w", err)
	}

	var processed, filtered, errCount int
	for _, a := range raws {
		na, ok, procErr := process(&a)
		if procErr != nil {
			errCount++
			logger.Warn("normalize article failed", zap.Int64("raw_id", a.ID), zap.Error(procErr))
			continue
		}
		if !ok {
			filtered++
			continue
		}
		if _, err := n.normal.Insert(ctx, na); err != nil {
			errCount++
			logger.Warn("insert normalized article failed", zap.Int64("raw_id", a.ID), zap.Error(err))
			continue
		}
		processed++
	}

	log := models.BatchLog{
		BatchID:   batchID,
		Total:     len(raws),
		Processed: processed,
		Filtered:  filtered,
		Errors:    errCount,
		Elapsed:   time.Since(start),
	}
	logger.Info("normalizer batch complete",
		zap.String("batch_id", log.BatchID),
		zap.Int("total", log.Total),
		zap.Int("processed", log.Processed),
		zap.Int("filtered", log.Filtered),
		zap.Int("errors", log.Errors),
		zap.Duration("elapsed", log.Elapsed),
	)

	if n.metrics != nil {
		_ = n.metrics.Add(&metrics.NormalizerBatchMetric{
			Timestamp: start,
			BatchID:   log.BatchID,
			Total:     log.Total,
			Processed: log.Processed,
			Filtered:  log.Filtered,
			Errors:    log.Errors,
			ElapsedMs: log.Elapsed.Milliseconds(),
		})
	}

	return processed, nil
}

// process runs one raw article through the full normalization pipeline.
// ok=false means the article was filtered (spam or low quality), not an
// error.
func process(a *models.RawArticle) (*models.NormalizedArticle, bool, error) {
	title := stripHTML(a.Title)
	content := stripHTML(a.Content)
	if content == "" {
		content = stripHTML(a.Summary)
	}

	spam := isSpam(content)
	quality := qualityScore(title, content, a.Link, a.Source, spam)
	if quality < minQualityScore {
		return nil, false, nil
	}

	lang := detectLanguage(content)
	entities := extractEntities(content)
	title = repairTitle(title, content)
	words, _ := readingStats(content)

	na := &models.NormalizedArticle{
		OriginalID:   a.ID,
		Title:        title,
		Content:      content,
		Link:         a.Link,
		Source:       a.Source,
		PublishedAt:  a.Published,
		LanguageCode: lang,
		Entities:     entities,
		QualityScore: quality,
		WordCount:    words,
	}
	return na, true, nil
}

var (
	controlChars = regexp.MustCompile(`[\x00\x0B\x0C﻿]`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	wsPattern    = regexp.MustCompile(`\s+`)
)

// stripHTML decodes entities, removes tags and control characters, and
// collapses whitespace (§4.B step 1).
func stripHTML(s string) string {
	s = html.UnescapeString(s)
	s = tagPattern.ReplaceAllString(s, " ")
	s = controlChars.ReplaceAllString(s, "")
	s = wsPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)click here`),
	regexp.MustCompile(`(?i)buy now`),
	regexp.MustCompile(`(?i)\d{1,3}%\s*(off|discount)`),
	regexp.MustCompile(`(?i)limited[- ]time offer`),
	regexp.MustCompile(`(?i)subscribe now`),
	regexp.MustCompile(`(?i)act now`),
	regexp.MustCompile(`(?i)sponsored\s*content`),
	regexp.MustCompile(`(?i)act\s+fast`),
}

// isSpam reports whether content should be dropped on spam grounds
// (§4.B step 2): too short, a known promo pattern, or high emoji density.
func isSpam(content string) bool {
	if utf8.RuneCountInString(content) < 20 {
		return true
	}
	for _, p := range spamPatterns {
		if p.MatchString(content) {
			return true
		}
	}
	return emojiDensity(content) > 0.10
}

func emojiDensity(s string) float64 {
	if s == "" {
		return 0
	}
	total := 0
	emojis := 0
	for _, r := range s {
		total++
		if isEmoji(r) {
			emojis++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(emojis) / float64(total)
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2190 && r <= 0x21FF:
		return true
	default:
		return false
	}
}

// detectLanguage is a coarse heuristic: cyrillic-majority content is tagged
// "ru", latin-majority "en", anything with too little signal "unknown"
// (§4.B step 3 looks only at the first 1000 chars).
func detectLanguage(content string) string {
	sample := content
	if len(sample) > 1000 {
		sample = sample[:1000]
	}
	var cyr, lat int
	for _, r := range sample {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyr++
		case unicode.Is(unicode.Latin, r):
			lat++
		}
	}
	if cyr+lat < 20 {
		return "unknown"
	}
	if cyr > lat {
		return "ru"
	}
	return "en"
}

var (
	tickerPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
	properPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+){1,3})\b`)
)

// extractEntities pulls uppercase runs (tickers) and title-case multiword
// phrases (proper nouns), deduplicated, keeping the first 20 (§4.B step 4).
func extractEntities(content string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, m := range tickerPattern.FindAllString(content, -1) {
		if len(out) >= 20 {
			break
		}
		add(m)
	}
	for _, m := range properPattern.FindAllString(content, -1) {
		if len(out) >= 20 {
			break
		}
		add(m)
	}
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

// qualityScore implements §4.B step 5's point accumulation exactly.
func qualityScore(title, content, link, source string, spam bool) float64 {
	var score float64
	n := utf8.RuneCountInString(content)
	switch {
	case n >= 500:
		score += 0.3
	case n >= 200:
		score += 0.2
	}
	if len(title) > 10 {
		score += 0.2
	}
	if link != "" {
		score += 0.1
	}
	if source != "" {
		score += 0.1
	}
	if !spam {
		score += 0.3
	}
	if spam {
		score *= 0.3
	}
	if score > 1 {
		score = 1
	}
	return score
}

var emojiStrip = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}]`)

// repairTitle synthesizes a usable title when the ingested one is
// degenerate (§4.B step 6).
func repairTitle(title, content string) string {
	needsRepair := title == "" ||
		title == content ||
		len(title) > 180 ||
		(len(content) >= 200 && strings.HasPrefix(content, title) && float64(len(title)) >= 0.8*200)

	if !needsRepair {
		return emojiStrip.ReplaceAllString(title, "")
	}

	synthesized := synthesizeTitle(content)
	return emojiStrip.ReplaceAllString(synthesized, "")
}

var sentenceBoundary = regexp.MustCompile(`[.!?][\s]`)

func synthesizeTitle(content string) string {
	loc := sentenceBoundary.FindStringIndex(content)
	if loc != nil && loc[0] >= 40 && loc[0] <= 160 {
		return strings.TrimSpace(content[:loc[0]+1])
	}

	cut := content
	if len(cut) > 160 {
		cut = cut[:160]
	}
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}

var wordPattern = regexp.MustCompile(`\w+`)

// readingStats counts words and estimates reading time in minutes, at least
// 1 (§4.B step 7).
func readingStats(content string) (words, readingTimeMin int) {
	words = len(wordPattern.FindAllString(content, -1))
	readingTimeMin = words / 200
	if readingTimeMin < 1 {
		readingTimeMin = 1
	}
	return words, readingTimeMin
}
