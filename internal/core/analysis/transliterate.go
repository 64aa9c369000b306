package analysis

import "regexp"

type dictionaryEntry struct {
	pattern     *regexp.Regexp
	replacement string
}

func entry(word, replacement string) dictionaryEntry {
	return dictionaryEntry{
		pattern:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
		replacement: replacement,
	}
}

var malayalamDictionary = []dictionaryEntry{
	entry("maintenance", "പരിപാലനം"),
	entry("safety", "സുരക്ഷ"),
	entry("inspection", "പരിശോധന"),
	entry("required", "ആവശ്യമാണ്"),
	entry("urgent", "അടിയന്തിര"),
	entry("track", "ട്രാക്ക്"),
	entry("electrical", "ഇലക്ട്രിക്കൽ"),
	entry("system", "സിസ്റ്റം"),
	entry("protocols", "നടപടികൾ"),
	entry("training", "പരിശീലനം"),
}

// Transliterate replaces known English keywords with their Malayalam
// equivalents, whole words only, in a single pass over the dictionary.
func Transliterate(summary string) string {
	out := summary
	for _, e := range malayalamDictionary {
		out = e.pattern.ReplaceAllLiteralString(out, e.replacement)
	}
	return out
}
