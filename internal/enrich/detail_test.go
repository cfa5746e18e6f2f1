package enrich

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetailResponse_PlainJSON(t *testing.T) {
	d, err := parseDetailResponse(`{"analysis_text": "TL;DR: something happened."}`)
	require.NoError(t, err)
	assert.Equal(t, "TL;DR: something happened.", d)
}

func TestParseDetailResponse_WrappedInCodeFence(t *testing.T) {
	raw := "```json\n{\"analysis_text\": \"card body\"}\n```"
	d, err := parseDetailResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "card body", d)
}

func TestParseDetailResponse_EmptyIsDistinctError(t *testing.T) {
	_, err := parseDetailResponse("   ")
	assert.True(t, errors.Is(err, errEmptyResponse))
}

func TestParseDetailResponse_MissingFieldIsError(t *testing.T) {
	_, err := parseDetailResponse(`{"something_else": "x"}`)
	assert.Error(t, err)
}

func TestFallbackCard_UsesFirstURLAndHotness(t *testing.T) {
	card := fallbackCard(0.42, []string{"https://example.com/a", "https://example.com/b"})
	assert.Contains(t, card, "0.42")
	assert.Contains(t, card, "https://example.com/a")
	assert.NotContains(t, card, "https://example.com/b")
}

func TestFallbackCard_NoURLsUsesPlaceholder(t *testing.T) {
	card := fallbackCard(0.1, nil)
	assert.Contains(t, card, "no link")
}

func TestBuildDetailPrompt_TruncatesLongBody(t *testing.T) {
	longBody := make([]byte, contentPromptLen+500)
	for i := range longBody {
		longBody[i] = 'a'
	}
	prompt := buildDetailPrompt("headline", string(longBody), nil, 0.5, nil, "2026-01-01", "wsj.com")
	assert.LessOrEqual(t, len(prompt), contentPromptLen+200)
}

func TestBuildDetailPrompt_NoTickersUsesDash(t *testing.T) {
	prompt := buildDetailPrompt("h", "c", nil, 0.1, nil, "2026-01-01", "")
	assert.Contains(t, prompt, "TICKERS: —")
}
