package middleware

import (
	"regexp"
	"strings"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
)

// Input validation and sanitization utilities

var projectNamePattern = regexp.MustCompile(`^[\p{L}\p{N} ._-]{1,128}$`)

// ValidateProjectName requires a short human readable name.
func ValidateProjectName(name string) error {
	if name == "" {
		return domain.Invalid("project name is required")
	}
	if !projectNamePattern.MatchString(name) {
		return domain.Invalid("invalid project name (letters, digits, space, dot, dash, underscore only, max 128 chars)")
	}
	return nil
}

// ValidatePrefix validates a bucket key prefix.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return domain.Invalid("prefix is required")
	}
	if strings.HasPrefix(prefix, "/") {
		return domain.Invalid("prefix must be relative to the bucket")
	}
	for _, seg := range strings.Split(prefix, "/") {
		if seg == ".." {
			return domain.Invalid("path traversal detected in prefix")
		}
	}
	if strings.ContainsAny(prefix, "\x00\r\n") {
		return domain.Invalid("invalid characters in prefix")
	}
	return nil
}

// ValidateFormat accepts the supported result encodings; empty means json.
func ValidateFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "json":
		return "json", nil
	case "sarif":
		return "sarif", nil
	default:
		return "", domain.Invalid("unsupported format %q (allowed: json, sarif)", format)
	}
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
