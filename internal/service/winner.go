package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
)

var ErrInvalidPosition = errors.New("winner position must be 1, 2 or 3")

type WinnerSelection struct {
	SongID        string
	Position      int
	AdminNotes    string
	PrizeAmount   *float64
	FeaturedUntil *time.Time
}

type WinnerService struct {
	winnerRepo   repository.WinnerRepository
	emailService *EmailService
}

func NewWinnerService(winnerRepo repository.WinnerRepository, emailService *EmailService) *WinnerService {
	return &WinnerService{
		winnerRepo:   winnerRepo,
		emailService: emailService,
	}
}

// Select records a winner and notifies the contestant. The song is flagged in
// the same transaction as the winner row. A failed notification is logged and
// reported through notified; it never undoes the selection.
func (s *WinnerService) Select(ctx context.Context, sel WinnerSelection) (entry *model.WinnerEntry, notified bool, err error) {
	if sel.Position < 1 || sel.Position > 3 {
		return nil, false, ErrInvalidPosition
	}

	winner := &model.Winner{
		ID:            uuid.New().String(),
		SongID:        sel.SongID,
		Position:      sel.Position,
		AdminNotes:    strings.TrimSpace(sel.AdminNotes),
		PrizeAmount:   sel.PrizeAmount,
		FeaturedUntil: sel.FeaturedUntil,
		SelectedAt:    time.Now().UTC(),
	}

	err = s.winnerRepo.Create(ctx, winner)
	if err != nil {
		return nil, false, err
	}

	entry, err = s.winnerRepo.ByID(ctx, winner.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load winner: %w", err)
	}
	slog.Info("winner selected", "winner_id", entry.ID, "song_id", entry.SongID, "position", entry.Position)

	err = s.emailService.SendWinnerNotification(ctx, entry)
	if err != nil {
		slog.Error("failed to notify winner", "error", err, "winner_id", entry.ID, "email", entry.Email)
		return entry, false, nil
	}
	return entry, true, nil
}

func (s *WinnerService) Remove(ctx context.Context, id string) error {
	err := s.winnerRepo.Delete(ctx, id)
	if err != nil {
		return err
	}

	slog.Info("winner removed", "winner_id", id)
	return nil
}

func (s *WinnerService) List(ctx context.Context) ([]*model.WinnerEntry, error) {
	return s.winnerRepo.List(ctx)
}
