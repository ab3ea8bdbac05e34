package model

import "time"

type Winner struct {
	ID            string     `db:"id" json:"id"`
	SongID        string     `db:"song_id" json:"song_id"`
	Position      int        `db:"position" json:"position"`
	AdminNotes    string     `db:"admin_notes" json:"admin_notes,omitempty"`
	PrizeAmount   *float64   `db:"prize_amount" json:"prize_amount,omitempty"`
	FeaturedUntil *time.Time `db:"featured_until" json:"featured_until,omitempty"`
	SelectedAt    time.Time  `db:"selected_at" json:"selected_at"`
}

// WinnerEntry is a winner joined with its song and contestant for listings.
type WinnerEntry struct {
	Winner
	SongTitle string `db:"song_title" json:"song_title"`
	Username  string `db:"username" json:"username"`
	Email     string `db:"email" json:"-"`
}
