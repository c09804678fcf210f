package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log, in runes
	MaxQueryLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Password keywords in ADO-style (SQL Server) and libpq-style connection strings.
	// Matches: Password=xxx, pwd = xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)\s*=\s*[^;&\s]+`)

	// Azure AD client secrets used by the azuresql driver
	clientSecretPattern = regexp.MustCompile(`(?i)\b(client[_ ]?secret)\s*=\s*[^;&\s]+`)

	// Bearer tokens sent to model endpoints
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.~+/]+=*`)

	// key=value style API keys
	apiKeyPattern = regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|x-api-key|key)\s*[=:]\s*[A-Za-z0-9\-_]{20,}`)

	// Bare OpenAI and Anthropic keys (sk-..., sk-ant-...)
	providerKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}`)

	// user:pass@host in URL connection strings (sqlserver://, postgres://)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s?]+`)
)

// SanitizeConnectionString removes credentials from a connection string.
// Use this before logging any DSN or URL.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = clientSecretPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Driver and model-client errors can echo DSNs, headers and keys.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := SanitizeConnectionString(err.Error())
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)

	return sanitized
}

// SanitizeQuery collapses whitespace and truncates a SQL query for logging.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := TruncateString(strings.Join(strings.Fields(query), " "), MaxQueryLogLength)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	return sanitized
}

// TruncateString truncates s to maxLen runes and adds an ellipsis if needed
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
