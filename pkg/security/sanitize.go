// Package security provides input sanitization helpers for user-supplied
// text such as proof answers, review reasons, and uploaded filenames.
package security

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeString trims whitespace and strips null bytes and non-printing
// control characters, preserving tabs and newlines.
func SanitizeString(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == 0 || unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(cleaned)
}

// SanitizeFilename strips path components and characters unsafe for storage
// keys, keeping only the base name.
func SanitizeFilename(input string) string {
	base := filepath.Base(strings.ReplaceAll(input, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "." || base == ".." || base == "" {
		return "file"
	}
	return base
}

// NormalizeWhitespace collapses runs of whitespace into single spaces and
// trims the ends. Used before comparing user answers.
func NormalizeWhitespace(input string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(input, " "))
}

// TruncateString cuts a string to at most maxLength runes.
func TruncateString(input string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= maxLength {
		return input
	}
	return string(runes[:maxLength])
}
