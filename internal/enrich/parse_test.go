package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_PlainJSON(t *testing.T) {
	a, err := parseResponse(`{"hotness": 0.583, "tickers": ["BTC", "USD"], "reasoning": "scale=0.15", "headline_en": "h", "content_en": "c"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.583, a.Hotness)
	assert.Equal(t, []string{"BTC", "USD"}, a.Tickers)
}

func TestParseResponse_WrappedInJSONCodeFence(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\"hotness\": 0.4, \"tickers\": [], \"reasoning\": \"ok\"}\n```\nThanks."
	a, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.4, a.Hotness)
}

func TestParseResponse_WrappedInPlainCodeFence(t *testing.T) {
	raw := "```\n{\"hotness\": 0.2, \"tickers\": [\"AAPL\"], \"reasoning\": \"ok\"}\n```"
	a, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.2, a.Hotness)
	assert.Equal(t, []string{"AAPL"}, a.Tickers)
}

func TestParseResponse_TakesLastBalancedObjectWhenMultiplePresent(t *testing.T) {
	raw := `Some thinking: {"hotness": 0.1, "tickers": []} ... final answer: {"hotness": 0.9, "tickers": ["TSLA"], "reasoning": "final"}`
	a, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.9, a.Hotness)
	assert.Equal(t, []string{"TSLA"}, a.Tickers)
}

func TestParseResponse_EmptyResponseIsDistinctError(t *testing.T) {
	_, err := parseResponse("   ")
	assert.ErrorIs(t, err, errEmptyResponse)
}

func TestParseResponse_NoJSONFound(t *testing.T) {
	_, err := parseResponse("I refuse to answer in JSON.")
	assert.Error(t, err)
}

func TestParseResponse_ClampsHotnessToUnitRange(t *testing.T) {
	a, err := parseResponse(`{"hotness": 1.4, "tickers": []}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.Hotness)

	a, err = parseResponse(`{"hotness": -0.2, "tickers": []}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Hotness)
}

func TestParseResponse_ControlCharactersInsideStringAreStripped(t *testing.T) {
	raw := "{\"hotness\": 0.5, \"tickers\": [], \"reasoning\": \"line one\nline two\"}"
	a, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.5, a.Hotness)
}
