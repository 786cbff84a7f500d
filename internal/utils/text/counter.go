// Package text provides rune-aware helpers for prompts and responses.
package text

import "unicode/utf8"

// CountRunes counts Unicode characters rather than bytes, so "日本語" is 3.
func CountRunes(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateRunes cuts s to at most max runes and reports whether it was cut.
// The result never splits a multi-byte character.
func TruncateRunes(s string, max int) (string, bool) {
	if max <= 0 {
		return "", s != ""
	}
	if len(s) <= max {
		// Fewer bytes than max means fewer runes too.
		return s, false
	}

	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
