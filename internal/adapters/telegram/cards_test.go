package telegram

import (
	"bytes"
	"fmt"
	"testing"
	"text/template"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrov/finradar/pkg/models"
)

type stubRenderer struct {
	tmpl *template.Template
	name string
}

func newStubRenderer(t *testing.T, name, body string) *stubRenderer {
	tmpl, err := template.New(name).Parse(body)
	require.NoError(t, err)
	return &stubRenderer{tmpl: tmpl, name: name}
}

func (s *stubRenderer) GetTemplate(name string) *template.Template { return s.tmpl }

func (s *stubRenderer) ExecuteTemplate(name string, data any) (string, error) {
	if name != s.name {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *stubRenderer) TemplateExists(name string) bool { return name == s.name }

func newsRow(hotness float64, tickers []string, urls string) *models.AnalyzedNews {
	return &models.AnalyzedNews{
		ID:            7,
		HeadlineEN:    "Fed holds rates steady",
		AIHotness:     hotness,
		Tickers:       tickers,
		URLsJSON:      urls,
		PublishedTime: time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC),
	}
}

func TestFormatCard_FallsBackWithoutTemplates(t *testing.T) {
	b := &Bot{}
	text := b.formatCard(newsRow(0.9, []string{"SPY"}, `["https://reuters.com/a"]`), 1, 3, "")
	assert.Contains(t, text, "Fed holds rates steady")
	assert.Contains(t, text, "#1/3 Story")
	assert.Contains(t, text, "SPY")
}

func TestFormatCard_UsesCustomHeaderWhenProvided(t *testing.T) {
	b := &Bot{}
	text := b.formatCard(newsRow(0.9, nil, ""), 1, 1, "Hot story")
	assert.Contains(t, text, "Hot story")
	assert.NotContains(t, text, "#1/1")
}

func TestFormatCard_NoTickersUsesDash(t *testing.T) {
	b := &Bot{}
	text := b.formatCard(newsRow(0.3, nil, ""), 1, 1, "")
	assert.Contains(t, text, "Tickers: —")
}

func TestFormatCard_UsesTemplateWhenAvailable(t *testing.T) {
	b := &Bot{templates: newStubRenderer(t, "card.tmpl", "CARD: {{.Headline}} ({{printf \"%.2f\" .Hotness}})")}
	text := b.formatCard(newsRow(0.55, nil, ""), 1, 1, "")
	assert.Equal(t, "CARD: Fed holds rates steady (0.55)", text)
}

func TestHotnessEmoji_Bands(t *testing.T) {
	assert.Equal(t, "[HOT]", hotnessEmoji(0.9))
	assert.Equal(t, "[WARM]", hotnessEmoji(0.65))
	assert.Equal(t, "[WATCH]", hotnessEmoji(0.2))
}

func TestTruncateURL_LeavesShortURLsUnchanged(t *testing.T) {
	assert.Equal(t, "https://a.com", truncateURL("https://a.com"))
}

func TestTruncateURL_TruncatesLongURLs(t *testing.T) {
	long := "https://example.com/" + string(make([]byte, 60))
	out := truncateURL(long)
	assert.LessOrEqual(t, len(out), 50)
	assert.Contains(t, out, "...")
}
