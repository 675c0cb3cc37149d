package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// refreshSecretBytes is the entropy of an opaque refresh secret.
const refreshSecretBytes = 32

// GenerateRefreshSecret returns a new opaque refresh secret (base64url, no padding).
// Only its HashRefreshToken digest may be persisted.
func GenerateRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshToken returns the hex-encoded SHA-256 digest of a refresh secret.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
