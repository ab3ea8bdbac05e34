package model

import (
	"time"
)

const (
	PhaseStatusOpen            = "open_for_submission"
	PhaseStatusJudging         = "judging"
	PhaseStatusWinnerAnnounced = "winner_announced"
)

type ContestPhase struct {
	ID           string    `db:"id" json:"id"`
	Status       string    `db:"status" json:"status"`
	Description  string    `db:"description" json:"description"`
	DeadlineDate time.Time `db:"deadline_date" json:"deadline_date"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func IsPhaseStatus(s string) bool {
	switch s {
	case PhaseStatusOpen, PhaseStatusJudging, PhaseStatusWinnerAnnounced:
		return true
	}
	return false
}

// IsActive reports whether the phase window is still open at now.
func (p *ContestPhase) IsActive(now time.Time) bool {
	return !now.After(p.DeadlineDate)
}
