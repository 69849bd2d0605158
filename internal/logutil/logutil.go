// Package logutil holds helpers that keep log lines short and free of secrets.
package logutil

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// IsSensitiveLogField returns true when a key likely contains sensitive data.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "accesskey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	default:
		return false
	}
}

// RedactValue returns "[REDACTED]" for non-empty values of sensitive keys.
func RedactValue(key, value string) string {
	if value != "" && IsSensitiveLogField(key) {
		return "[REDACTED]"
	}
	return value
}

// FormatHeadersForLog returns stable, redacted header text for logs.
func FormatHeadersForLog(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := headers.Values(k)
		if len(values) == 0 {
			parts = append(parts, fmt.Sprintf("%s=<empty>", strings.ToLower(k)))
			continue
		}
		redacted := make([]string, len(values))
		for i, v := range values {
			redacted[i] = RedactValue(k, v)
		}
		parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), strings.Join(redacted, ", ")))
	}
	return strings.Join(parts, "; ")
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}

// PagePreview collapses runs of whitespace in page source and truncates it,
// so a failing page can be eyeballed from a single log line.
func PagePreview(source string, maxChars int) string {
	return TruncateForLog(strings.Join(strings.Fields(source), " "), maxChars)
}
