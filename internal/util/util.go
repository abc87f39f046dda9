// Package util holds string helpers for the host's argument format.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs unquotes every argument in place.
func CleanArgs(args []string) {
	for i, v := range args {
		args[i] = FixEscapeQuotes(TrimQuotes(v))
	}
}

// EscapeQuotes doubles every double quote so s can be embedded in a host
// string literal. It is the inverse of FixEscapeQuotes.
func EscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}
