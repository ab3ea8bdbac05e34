package model

import (
	"time"
)

// VerificationCode is a single-use numeric code proving control of an email
// address for one sensitive action.
type VerificationCode struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Email     string    `db:"email"`
	Type      string    `db:"type"`
	Code      string    `db:"code"`
	Attempts  int       `db:"attempts"`
	IsUsed    bool      `db:"is_used"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

const (
	VerificationTypeRegistration     = "registration"
	VerificationTypeLogin            = "login"
	VerificationTypePasswordReset    = "password_reset"
	VerificationTypeUsernameRecovery = "username_recovery"
	VerificationTypeSongDeletion     = "song_deletion"
)

var VerificationTypes = []string{
	VerificationTypeRegistration,
	VerificationTypeLogin,
	VerificationTypePasswordReset,
	VerificationTypeUsernameRecovery,
	VerificationTypeSongDeletion,
}

func IsVerificationType(t string) bool {
	for _, v := range VerificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (v *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

func (v *VerificationCode) IsExhausted(maxAttempts int) bool {
	return v.Attempts >= maxAttempts
}

func (v *VerificationCode) IsValid(now time.Time, maxAttempts int) bool {
	return !v.IsUsed && !v.IsExpired(now) && !v.IsExhausted(maxAttempts)
}

// MinutesRemaining rounds up so a code with 30 seconds left still shows 1.
func (v *VerificationCode) MinutesRemaining(now time.Time) int {
	left := v.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Minute - 1) / time.Minute)
}
