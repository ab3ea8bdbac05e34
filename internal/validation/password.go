package validation

import (
	"strings"
	"unicode"
)

// ValidatePassword checks a new account password. The username is used to
// reject passwords that merely repeat it.
func ValidatePassword(password, username string) error {
	if len(password) < 8 {
		return newError("password must be at least 8 characters")
	}

	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return newError("password must not exceed 72 characters")
	}

	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return newError("password cannot be entirely numeric")
	}

	lower := strings.ToLower(password)
	if username != "" && strings.Contains(lower, strings.ToLower(username)) {
		return newError("password is too similar to the username")
	}

	commonPatterns := []string{
		"password", "123456", "qwerty", "admin", "letmein",
		"welcome", "monkey", "dragon", "master", "sunshine",
	}
	for _, pattern := range commonPatterns {
		if strings.Contains(lower, pattern) {
			return newError("password is too common, please choose a stronger one")
		}
	}

	return nil
}
