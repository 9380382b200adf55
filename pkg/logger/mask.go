package logger

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

var sensitiveHeaders = []string{
	"authorization",
	"signature",
	"sign",
	"secret",
	"token",
	"cookie",
}

// Headers returns a zap field with header values masked where the header
// name suggests credentials or signatures.
func Headers(key string, headers http.Header) zap.Field {
	masked := make(map[string]string, len(headers))
	for name, values := range headers {
		joined := strings.Join(values, ",")
		if isSensitive(name) {
			joined = maskLast4(joined)
		}
		masked[name] = joined
	}
	return zap.Any(key, masked)
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	for _, needle := range sensitiveHeaders {
		if strings.Contains(name, needle) {
			return true
		}
	}
	return false
}

func maskLast4(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
