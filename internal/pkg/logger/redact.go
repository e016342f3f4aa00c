package logger

import (
	"net/url"
	"regexp"
	"strings"
)

var secretKeys = []string{"token", "secret", "password", "authorization", "webhook"}

var bearerRegex = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/=-]+`)

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	for _, k := range secretKeys {
		if strings.Contains(key, k) {
			if strings.HasPrefix(val, "http://") || strings.HasPrefix(val, "https://") {
				return RedactURL(val)
			}
			return "***"
		}
	}
	return bearerRegex.ReplaceAllString(val, "Bearer ***")
}

// RedactURL keeps the scheme and host of a URL and masks the rest. Chat
// webhook URLs carry their credential in the path and query.
// "https://chat.example.com/hooks/abc?key=1" → "https://chat.example.com/***"
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}
