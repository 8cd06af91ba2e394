package utils

import (
	"strings"
	"unicode"
)

const maxSlugLength = 120

// Slugify lower-cases s and joins its letter and digit runs with dashes.
// Non-Latin letters are kept as is.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	slug := b.String()
	if slug == "" {
		return "post"
	}
	return slug
}
