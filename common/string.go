package common

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

func RandomID() string {
	u, _ := uuid.NewRandom()
	return u.String()
}

var safeStringRegex = regexp.MustCompile(`[^a-zA-Z0-9_.]`)

// SafeString sanitizes a string for use in object-storage keys.
func SafeString(s string) string {
	return safeStringRegex.ReplaceAllString(strings.ToLower(s), "_")
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeHandle lowercases a contact handle and drops the leading "@"
// people habitually type in front of Telegram usernames.
func NormalizeHandle(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
