package identity

import (
	"fmt"
	"net/mail"
	"strings"
)

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email address is required")
	}

	if len(email) > maxEmailLength {
		return fmt.Errorf("email address is too long (max %d characters)", maxEmailLength)
	}

	addr, err := mail.ParseAddress(NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("invalid email address format")
	}

	// Reject "Name <addr>" forms that mail.ParseAddress accepts.
	if addr.Address != NormalizeEmail(email) {
		return fmt.Errorf("invalid email address format")
	}

	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
