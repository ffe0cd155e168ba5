package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// confirmationTokenBytes is the entropy of email confirmation tokens.
const confirmationTokenBytes = 32

// ConfirmationToken is a newly generated email confirmation token.
type ConfirmationToken struct {
	Plaintext string // Sent to the user, never stored
	Hash      string // Stored for lookup
}

// GenerateConfirmationToken creates a random token and its lookup hash.
func GenerateConfirmationToken() (*ConfirmationToken, error) {
	plaintext, err := randomHex(confirmationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate confirmation token: %w", err)
	}
	return &ConfirmationToken{
		Plaintext: plaintext,
		Hash:      HashToken(plaintext),
	}, nil
}

// HashToken returns the storage hash of a high-entropy token. Tokens are
// random, so a plain SHA256 is sufficient and keeps lookups indexable.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
