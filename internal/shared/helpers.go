// Package shared provides common utility functions used across multiple
// packages in the python-buildpack codebase.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// NormalizePipName lowercases a Python package name and replaces
// underscores and dots with hyphens, following PEP 503 normalization.
func NormalizePipName(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	replacer := strings.NewReplacer("_", "-", ".", "-")
	return replacer.Replace(lower)
}

// HTTPStatusError creates a formatted error for non-2xx HTTP responses.
func HTTPStatusError(status int, url string) error {
	return fmt.Errorf("status=%d url=%s", status, RedactCredentials(url))
}

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, RedactCredentials(url), strings.TrimSpace(body))
}

var credentialPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9+.\-]*://)[^/\s:@]+(:[^/\s@]*)?@`)

// RedactCredentials masks the userinfo part of URLs, such as private
// index URLs in requirement files or pip output.
func RedactCredentials(value string) string {
	return credentialPattern.ReplaceAllString(value, "${1}***@")
}

// Tail returns at most the last n lines of value.
func Tail(value string, n int) string {
	trimmed := strings.TrimRight(value, "\n")
	if n <= 0 || trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
