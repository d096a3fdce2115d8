package utils

import (
	"regexp"
	"strings"
)

// IsEmpty checks if a string is empty or contains only whitespace
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsNotEmpty checks if a string is not empty and contains non-whitespace characters
func IsNotEmpty(s string) bool {
	return !IsEmpty(s)
}

// DefaultIfEmpty returns the default value if the string is empty
func DefaultIfEmpty(s, defaultValue string) string {
	if IsEmpty(s) {
		return defaultValue
	}
	return s
}

// Truncate truncates a string to the specified length with optional ellipsis
func Truncate(s string, maxLength int, ellipsis ...string) string {
	if len(s) <= maxLength {
		return s
	}

	suffix := "..."
	if len(ellipsis) > 0 {
		suffix = ellipsis[0]
	}
	if maxLength < len(suffix) {
		return s[:maxLength]
	}

	return s[:maxLength-len(suffix)] + suffix
}

// ContainsIgnoreCase checks if a string contains a substring (case-insensitive)
func ContainsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ContainsAny checks if a string contains any of the given substrings
func ContainsAny(s string, substrs ...string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// CountWords counts the number of words in a string
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// RemoveDuplicateSpaces removes duplicate spaces from a string
func RemoveDuplicateSpaces(s string) string {
	re := regexp.MustCompile(`\s+`)
	return re.ReplaceAllString(strings.TrimSpace(s), " ")
}
