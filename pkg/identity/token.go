package identity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// resetTokenLen is the number of random bytes in a reset token. 32 bytes is
// far past the point of guessability; the token is transmitted exactly once.
const resetTokenLen = 32

func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
