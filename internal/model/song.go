package model

import (
	"time"
)

const (
	SongLanguageUrdu    = "urdu"
	SongLanguageEnglish = "english"
)

type Song struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	Language      string    `db:"language" json:"language"`
	Genre         string    `db:"genre" json:"genre"`
	AIToolUsed    string    `db:"ai_tool_used" json:"ai_tool_used"`
	ViewCount     int       `db:"view_count" json:"view_count"`
	VoteCount     int       `db:"vote_count" json:"vote_count"`
	AverageRating float64   `db:"average_rating" json:"average_rating"`
	IsFeatured    bool      `db:"is_featured" json:"is_featured"`
	IsWinner      bool      `db:"is_winner" json:"is_winner"`
	SubmittedAt   time.Time `db:"submitted_at" json:"submitted_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	// Computed fields (not in database)
	Username  string `db:"username" json:"username,omitempty"`
	AudioURL  string `db:"-" json:"audio_url,omitempty"`
	LyricsURL string `db:"-" json:"lyrics_url,omitempty"`
	FileSize  string `db:"-" json:"file_size,omitempty"`
}

func IsSongLanguage(l string) bool {
	return l == SongLanguageUrdu || l == SongLanguageEnglish
}

// SongFilter narrows song listings. Zero values mean "no filter".
type SongFilter struct {
	Search   string
	Language string
	Genre    string
	UserID   string
	Featured bool

	// RatedOnly and ViewedOnly drop songs nobody voted on or opened.
	RatedOnly  bool
	ViewedOnly bool
	OrderBy    string // "recent" (default), "oldest", "rating", "votes", "views"
	Limit      int
	Offset     int
}

type Vote struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	SongID    string    `db:"song_id" json:"song_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Comment struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	SongID     string    `db:"song_id" json:"song_id"`
	Content    string    `db:"content" json:"content"`
	IsApproved bool      `db:"is_approved" json:"is_approved"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	Username string `db:"username" json:"username"`
}

// ContestStats are site-wide totals shown on the overview and admin dashboard.
type ContestStats struct {
	Songs       int `db:"songs" json:"songs"`
	Contestants int `db:"contestants" json:"contestants"`
	Votes       int `db:"votes" json:"votes"`
	Comments    int `db:"comments" json:"comments"`
	Winners     int `db:"winners" json:"winners"`
}

// ArtistStanding is one leaderboard row.
type ArtistStanding struct {
	Username      string  `db:"username" json:"username"`
	FirstName     string  `db:"first_name" json:"first_name"`
	LastName      string  `db:"last_name" json:"last_name"`
	TotalVotes    int     `db:"total_votes" json:"total_votes"`
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	SongCount     int     `db:"song_count" json:"song_count"`
}
