package config

import "strings"

// Sanitize returns a copy of cfg that is safe to log.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	if sanitized.Security.AdminSecretHash != "" {
		sanitized.Security.AdminSecretHash = maskSecret(sanitized.Security.AdminSecretHash)
	}
	return &sanitized
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
