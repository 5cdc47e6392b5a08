package utils

import (
	"regexp"
	"strings"
)

// nonWordRe matches everything that is neither a word character nor whitespace.
// Letters and digits are matched by Unicode class so accented Spanish text survives.
var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}]`)

// Normalize lowercases text, strips punctuation and drops Spanish stopwords.
// The same function must run before classification and before query embedding.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, "")

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if _, stop := spanishStopwords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// TruncateTokens keeps at most max whitespace-separated tokens
func TruncateTokens(text string, max int) string {
	if max <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ")
}

// TruncateRunes cuts s to at most max characters without splitting a rune
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
