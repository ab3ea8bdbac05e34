package model

import "time"

// Profile is the public view of a contestant.
type Profile struct {
	UserID             string    `db:"id" json:"-"`
	Username           string    `db:"username" json:"username"`
	FirstName          string    `db:"first_name" json:"first_name"`
	LastName           string    `db:"last_name" json:"last_name"`
	Bio                string    `db:"bio" json:"bio"`
	City               string    `db:"city" json:"city"`
	TotalSongsUploaded int       `db:"total_songs_uploaded" json:"total_songs_uploaded"`
	CreatedAt          time.Time `db:"created_at" json:"member_since"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FirstName   string
	LastName    string
	Bio         string
	City        string
	PhoneNumber string
}
