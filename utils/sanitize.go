package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// blog bodies come from a rich text editor
	richPolicy = bluemonday.UGCPolicy()
	// comments and form fields are plain text
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return richPolicy.Sanitize(input)
}

// SanitizeText strips all markup and surrounding whitespace.
func SanitizeText(input string) string {
	return strings.TrimSpace(plainPolicy.Sanitize(input))
}

// TruncateRunes drops invalid UTF-8 sequences and cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
