package logger

import (
	"net/http"
	"net/url"
	"strings"
)

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"access_code",
	"authorization",
}

// MaskAuthorization masks bearer-style tokens, preserving the scheme.
// Both "Bearer <token>" and "Zoho-oauthtoken <token>" are recognised.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Fields(value)
	if len(parts) == 2 {
		scheme := parts[0]
		if strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "Zoho-oauthtoken") {
			return scheme + " " + maskLast4(parts[1])
		}
	}
	return maskLast4(value)
}

// MaskAPIKey masks API keys, preserving only the last 4 characters.
func MaskAPIKey(value string) string {
	return maskLast4(value)
}

// MaskHeaders returns a copy of headers with sensitive fields masked.
func MaskHeaders(headers http.Header) map[string]string {
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		if isSensitiveKey(key) {
			masked[key] = MaskAuthorization(joined)
			continue
		}
		masked[key] = joined
	}
	return masked
}

// MaskQuery masks sensitive values in OAuth form params so token exchanges
// can be logged without leaking credentials.
func MaskQuery(params url.Values) map[string]string {
	masked := make(map[string]string, len(params))
	for key, values := range params {
		joined := strings.Join(values, ",")
		if isSensitiveKey(key) {
			masked[key] = maskLast4(joined)
			continue
		}
		masked[key] = joined
	}
	return masked
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range sensitiveKeys {
		if strings.Contains(key, needle) {
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
		return "****" + value
	}
	return "****" + value[len(value)-4:]
}
