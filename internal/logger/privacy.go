package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

const defaultHashSalt = "default-salt-change-in-production"

var hashSalt string

func init() {
	// In production, set LOG_HASH_SALT.
	hashSalt = os.Getenv("LOG_HASH_SALT")
	if hashSalt == "" {
		hashSalt = defaultHashSalt
	}
}

// SetHashSalt replaces the salt used by HashID. An empty salt restores the default.
func SetHashSalt(salt string) {
	if salt == "" {
		salt = defaultHashSalt
	}
	hashSalt = salt
}

// HashID creates a privacy-preserving hash of a user, workspace or expense ID.
// This allows correlating actions in logs without exposing the identifiers.
func HashID(id string) string {
	if id == "" {
		return "<none>"
	}
	hash := sha256.Sum256([]byte(id + ":" + hashSalt))
	// First 8 characters are enough to correlate.
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	// For short text, show length only
	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	// For longer text, show prefix and length
	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}
