package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMarkdown_ClosesDanglingBold(t *testing.T) {
	assert.Equal(t, "*hot headline*", sanitizeMarkdown("*hot headline"))
}

func TestSanitizeMarkdown_ClosesDanglingItalic(t *testing.T) {
	assert.Equal(t, "_caution_", sanitizeMarkdown("_caution"))
}

func TestSanitizeMarkdown_LeavesBalancedTextUnchanged(t *testing.T) {
	text := "*bold* and _italic_ and `code`"
	assert.Equal(t, text, sanitizeMarkdown(text))
}

func TestSanitizeMarkdown_ClosesDanglingCodeFence(t *testing.T) {
	out := sanitizeMarkdown("```json\n{\"a\":1}")
	assert.Equal(t, 2, countSubstr(out, "```")) // opened once, closed once
}

func countSubstr(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
			i += len(sub) - 1
		}
	}
	return count
}

func TestEscapePlain_StripsEmphasisTokens(t *testing.T) {
	out := escapePlain("*bold* _italic_ `code` [link]")
	assert.NotContains(t, out, "*")
	assert.NotContains(t, out, "_")
	assert.NotContains(t, out, "`")
}

func TestParseTopArgs_Defaults(t *testing.T) {
	limit, hours, err := parseTopArgs("")
	assert.NoError(t, err)
	assert.Equal(t, defaultListLimit, limit)
	assert.Equal(t, defaultTopHours, hours)
}

func TestParseTopArgs_ClampsCountAndHours(t *testing.T) {
	limit, hours, err := parseTopArgs("999 9999")
	assert.NoError(t, err)
	assert.Equal(t, 20, limit)
	assert.Equal(t, maxTopHours, hours)
}

func TestParseTopArgs_InvalidCountIsError(t *testing.T) {
	_, _, err := parseTopArgs("abc")
	assert.Error(t, err)
}

func TestParseTopArgs_CountOnly(t *testing.T) {
	limit, hours, err := parseTopArgs("5")
	assert.NoError(t, err)
	assert.Equal(t, 5, limit)
	assert.Equal(t, defaultTopHours, hours)
}

func TestParseURLsJSON_ValidArray(t *testing.T) {
	urls := parseURLsJSON(`["https://a.com","https://b.com"]`)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, urls)
}

func TestParseURLsJSON_InvalidJSONReturnsNil(t *testing.T) {
	urls := parseURLsJSON("not json")
	assert.Nil(t, urls)
}
