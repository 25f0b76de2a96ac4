package transport

import (
	"fmt"
	"strings"

	"captionsync/internal/language"
)

var quotePairs = [][2]string{{`"`, `"`}, {"“", "”"}, {"「", "」"}, {"«", "»"}}

// SystemPrompt builds the instruction shared by chat-completion providers.
func SystemPrompt(targetLang string) string {
	name := language.DisplayName(targetLang)
	return fmt.Sprintf(
		"You translate video captions into %s. Reply with the translation only, "+
			"without quotes, notes, or explanations. Keep names and numbers as written. "+
			"If the caption is already in %s, repeat it unchanged.",
		name, name,
	)
}

// CleanOutput strips the wrappers models tend to add around a bare translation:
// code fences, a leading "[0]" index, and one pair of enclosing quotes.
func CleanOutput(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		body := trimmed[3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			if tag := strings.TrimSpace(body[:nl]); !strings.ContainsAny(tag, " \t") {
				body = body[nl+1:]
			}
		}
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		trimmed = strings.TrimSpace(body)
	}
	if strings.HasPrefix(trimmed, "[0]") {
		trimmed = strings.TrimSpace(trimmed[3:])
	}
	for _, pair := range quotePairs {
		open, closing := pair[0], pair[1]
		if len(trimmed) <= len(open)+len(closing) ||
			!strings.HasPrefix(trimmed, open) || !strings.HasSuffix(trimmed, closing) {
			continue
		}
		inner := trimmed[len(open) : len(trimmed)-len(closing)]
		if strings.Contains(inner, open) || strings.Contains(inner, closing) {
			continue
		}
		trimmed = strings.TrimSpace(inner)
		break
	}
	return trimmed
}
