package auth

import "strings"

const bearerPrefix = "Bearer "

// BearerToken extracts the credential from an Authorization header value.
// A header without the Bearer scheme yields an empty credential.
func BearerToken(header string) string {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
