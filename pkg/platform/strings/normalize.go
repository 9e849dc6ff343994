// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
	"unicode/utf8"
)

// CollapseSpace trims s and replaces every internal run of whitespace with a
// single space.
//
// Example:
//
//	CollapseSpace("  12   Main\t St ")
//	// Returns: "12 Main St"
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Length returns the number of characters (runes) in s.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
