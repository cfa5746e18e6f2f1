package enrich

import (
	"encoding/json"
	"fmt"
	"strings"
)

// analysis is the shape the model is asked to return.
type analysis struct {
	Hotness    float64  `json:"hotness"`
	Tickers    []string `json:"tickers"`
	Reasoning  string   `json:"reasoning"`
	HeadlineEN string   `json:"headline_en"`
	ContentEN  string   `json:"content_en"`
}

// errEmptyResponse signals the caller should retry with a fresh request —
// it is not a parse failure, the model simply said nothing.
var errEmptyResponse = fmt.Errorf("llm returned an empty response")

// parseResponse extracts an analysis from a raw chat completion, tolerating
// the ways real models misbehave: markdown code fences around the JSON,
// leading/trailing commentary, and stray control characters. It always
// takes the last balanced {...} object in the text, since a model that
// "thinks out loud" tends to put its final answer last.
func parseResponse(raw string) (*analysis, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errEmptyResponse
	}

	content := stripCodeFences(raw)
	jsonText := lastBalancedObject(content)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	jsonText = stripControlChars(jsonText)

	var a analysis
	if err := json.Unmarshal([]byte(jsonText), &a); err != nil {
		return nil, fmt.Errorf("decode analysis JSON: %w", err)
	}

	if a.Hotness < 0 {
		a.Hotness = 0
	}
	if a.Hotness > 1 {
		a.Hotness = 1
	}
	if a.Tickers == nil {
		a.Tickers = []string{}
	}

	return &a, nil
}

// stripCodeFences removes a single ```json ... ``` or ``` ... ``` wrapper
// if the response is wrapped in one.
func stripCodeFences(s string) string {
	if idx := strings.Index(s, "```json"); idx != -1 {
		rest := s[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return rest[:end]
		}
		return rest
	}
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			return rest[:end]
		}
		return rest
	}
	return s
}

// lastBalancedObject scans s for every top-level brace-balanced {...}
// substring and returns the last one found, which is almost always the
// model's final, most complete answer.
func lastBalancedObject(s string) string {
	var lastStart, lastEnd = -1, -1
	depth := 0
	start := -1

	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					lastStart, lastEnd = start, i
				}
			}
		}
	}

	if lastStart == -1 {
		return ""
	}
	return s[lastStart : lastEnd+1]
}

// stripControlChars removes characters illegal inside JSON strings that
// some models emit verbatim (raw newlines/tabs inside an otherwise valid
// object), since encoding/json refuses to unmarshal them.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(' ')
			continue
		}
		if r < 0x20 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
