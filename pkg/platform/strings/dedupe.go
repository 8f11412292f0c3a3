// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// Dedupe removes duplicates and empty elements from a slice of string-like
// values, trimming whitespace from each. Order of first occurrence is
// preserved and the input slice is left untouched.
//
// Example:
//
//	Dedupe([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func Dedupe[T ~string](values []T) []T {
	if len(values) == 0 {
		return values
	}

	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))

	for _, v := range values {
		trimmed := T(strings.TrimSpace(string(v)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
