// Package analysis holds the local heuristics used when remote enrichment is
// unavailable. Everything here is pure and deterministic for a given input.
package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var sentenceDelimiters = regexp.MustCompile(`[.!?]+`)

// splitSentences splits on runs of '.', '!' and '?' and keeps trimmed
// sentences strictly longer than minLen runes.
func splitSentences(text string, minLen int) []string {
	parts := sentenceDelimiters.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		sentence := strings.TrimSpace(part)
		if utf8.RuneCountInString(sentence) > minLen {
			out = append(out, sentence)
		}
	}
	return out
}

func containsAny(sentence string, keywords []string) bool {
	lower := strings.ToLower(sentence)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
