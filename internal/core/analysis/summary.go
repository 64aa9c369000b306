package analysis

import "strings"

// PriorityKeywords mark sentences that belong in a heuristic summary.
var PriorityKeywords = []string{"maintenance", "safety", "inspection", "required", "urgent"}

const (
	summarySentenceMinLen  = 20
	keyPointSentenceMinLen = 10
	maxPrioritySentences   = 3
	maxLeadSentences       = 2
	maxKeyPoints           = 5
)

// ExtractSummary builds an extractive summary: up to three sentences that
// mention a priority keyword, otherwise the first two sentences.
func ExtractSummary(text string) string {
	sentences := splitSentences(text, summarySentenceMinLen)

	priority := make([]string, 0, maxPrioritySentences)
	for _, sentence := range sentences {
		if containsAny(sentence, PriorityKeywords) {
			priority = append(priority, sentence)
			if len(priority) == maxPrioritySentences {
				break
			}
		}
	}
	if len(priority) > 0 {
		return joinSentences(priority)
	}

	if len(sentences) == 0 {
		// Short documents: keep whatever text there is.
		sentences = splitSentences(text, 0)
	}
	if len(sentences) > maxLeadSentences {
		sentences = sentences[:maxLeadSentences]
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	return joinSentences(sentences)
}

// ExtractKeyPoints returns up to five trimmed sentences of the summary. The
// result is never nil.
func ExtractKeyPoints(summary string) []string {
	sentences := splitSentences(summary, keyPointSentenceMinLen)
	if len(sentences) > maxKeyPoints {
		sentences = sentences[:maxKeyPoints]
	}
	out := make([]string, len(sentences))
	copy(out, sentences)
	return out
}

func joinSentences(sentences []string) string {
	return strings.TrimSpace(strings.Join(sentences, ". ")) + "."
}
