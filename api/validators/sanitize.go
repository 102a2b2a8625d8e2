package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims whitespace, drops control characters, and caps the
// result at maxLen bytes without splitting a rune. Used for display fields
// sourced from multipart forms, like upload titles.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	cleaned = strings.TrimSpace(cleaned)

	if maxLen <= 0 || len(cleaned) <= maxLen {
		return cleaned
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return strings.TrimSpace(cleaned[:cut])
}
