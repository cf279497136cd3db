package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenLen is the byte length of verification, reset, and remember tokens.
// The hex encoding doubles it on the wire.
const TokenLen = 32

// GenerateToken returns n random bytes hex-encoded.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
