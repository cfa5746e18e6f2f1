package telegram

import "strings"

// sanitizeMarkdown closes dangling bold (*), italic (_) and code (`) tokens
// so an LLM-generated card that cuts off mid-emphasis still parses as valid
// Telegram Markdown instead of being rejected outright. It does not attempt
// full Markdown validation — only the handful of unbalanced-token failures
// that truncated or malformed LLM output actually produces.
func sanitizeMarkdown(s string) string {
	s = closeTripleBackticks(s)
	s = closeToken(s, "`")
	s = closeToken(s, "*")
	s = closeToken(s, "_")
	return s
}

func closeTripleBackticks(s string) string {
	if strings.Count(s, "```")%2 != 0 {
		return s + "\n```"
	}
	return s
}

// closeToken appends one more occurrence of tok if it appears an odd number
// of times, which pairs the final dangling opener with a closer.
func closeToken(s, tok string) string {
	if strings.Count(s, tok)%2 != 0 {
		return s + tok
	}
	return s
}

// escapePlain strips Markdown emphasis tokens for the plain-text fallback
// used when the messaging backend rejects a Markdown-formatted send.
func escapePlain(s string) string {
	r := strings.NewReplacer("*", "", "_", "", "`", "", "[", "", "]", "")
	return r.Replace(s)
}
