package model

import (
	"strings"
	"time"
)

type User struct {
	ID                 string     `db:"id"`
	Username           string     `db:"username"`
	Email              string     `db:"email"`
	PasswordHash       string     `db:"password_hash"`
	FirstName          string     `db:"first_name"`
	LastName           string     `db:"last_name"`
	IsActive           bool       `db:"is_active"`
	IsStaff            bool       `db:"is_staff"`
	Bio                string     `db:"bio"`
	City               string     `db:"city"`
	PhoneNumber        string     `db:"phone_number"`
	TotalSongsUploaded int        `db:"total_songs_uploaded"`
	EmailVerifiedAt    *time.Time `db:"email_verified_at"`
	CreatedAt          time.Time  `db:"created_at"`
}

// EmailVerified reports whether the owner ever proved the address. An
// inactive account with a verified email was deactivated by staff.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
