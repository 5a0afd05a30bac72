package utils

import (
	"strings"
	"unicode"
)

// NormalizePlate strips separators and whitespace and upper-cases latin
// letters so "90120 | ي | 72" and "90120ي72" compare equal.
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, r := range plate {
		switch {
		case unicode.IsSpace(r), r == '|', r == '-', r == '.':
			continue
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
