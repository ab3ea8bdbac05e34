package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidateUsername allows letters, digits and @.+-_ up to 150 characters.
func ValidateUsername(username string) error {
	if username == "" {
		return newError("username is required")
	}
	if len(username) > 150 {
		return newError("username is too long (max 150 characters)")
	}

	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return newError("username may only contain letters, digits and @/./+/-/_")
	}
	return nil
}

// ValidateName checks an optional first or last name.
func ValidateName(name string) error {
	if len(strings.TrimSpace(name)) > 150 {
		return newError("name is too long (max 150 characters)")
	}
	return nil
}

// ValidateCode checks the shape of a submitted verification code.
func ValidateCode(code string) error {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return newError("verification code must be 6 digits")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return newError("verification code must be 6 digits")
		}
	}
	return nil
}

const MaxBioLength = 500

func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return newError("bio is too long (max 500 characters)")
	}
	return nil
}
