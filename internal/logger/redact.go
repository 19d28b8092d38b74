package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// TruncateForLog shortens s to at most limit runes, marking the cut with "...".
func TruncateForLog(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

// HashAPIKey returns the first 8 hex characters of the key's SHA-256, or
// "none" for an empty key. Raw keys are never logged.
func HashAPIKey(key string) string {
	if key == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:8]
}
