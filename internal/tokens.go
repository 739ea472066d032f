package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// ResetTokenBytes is the entropy of a password reset token (256 bits).
const ResetTokenBytes = 32

// NewResetToken returns ResetTokenBytes of crypto/rand output, hex encoded.
func NewResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 digest stored in place of a bearer or
// reset token. Raw tokens are never persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
