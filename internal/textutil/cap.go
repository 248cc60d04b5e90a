package textutil

import (
	"strings"
	"unicode/utf8"
)

// CapRunes returns s cut to at most limit runes. A non-positive limit
// returns s unchanged.
func CapRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// EllipsizeRunes caps s at limit runes and appends "..." when something
// was cut.
func EllipsizeRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// CollapseSpaces reduces every whitespace run in s to a single space and
// trims the ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
