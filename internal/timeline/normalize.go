package timeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var zeroWidthReplacer = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
)

// NormalizeText applies NFKC, strips zero-width characters, and collapses
// whitespace runs (including line breaks) into single spaces.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	text = zeroWidthReplacer.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// Key returns the cache and dedup key for a source text.
func Key(text string) string {
	return NormalizeText(text)
}
