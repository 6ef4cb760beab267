package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// SensitiveDataPatterns contains regex patterns for sensitive data that should be redacted in logs
var SensitiveDataPatterns = []*regexp.Regexp{
	// user:password@ in MySQL and URL style DSNs
	regexp.MustCompile(`([A-Za-z0-9_.-]+:)([^@\s/]+)(@)`),
	// key=value and key: value secrets
	regexp.MustCompile(`(?i)((passw(or)?d|secret|token|api[_-]?key)[\s:=]+)([^;,\s]+)`),
}

// SensitiveKeywords are field keys whose values are always redacted
var SensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "dsn_password",
}

// RedactSensitiveData replaces sensitive information with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	input = SensitiveDataPatterns[0].ReplaceAllString(input, "${1}"+redactedValue+"${3}")
	input = SensitiveDataPatterns[1].ReplaceAllString(input, "${1}"+redactedValue)
	return input
}

// isSensitiveKey reports whether a field key names a secret
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitive := range SensitiveKeywords {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}
