package validation

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims and lowercases an address. Accounts and verification
// codes are always keyed by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks an address with net/mail (RFC 5322) and the SMTP
// length limit of 254 characters.
func ValidateEmail(email string) error {
	if email == "" {
		return newError("email address is required")
	}
	if len(email) > 254 {
		return newError("email address is too long (max 254 characters)")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return newError("invalid email address format")
	}
	return nil
}
