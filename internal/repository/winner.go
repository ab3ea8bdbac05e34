package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/db"
	"github.com/spado/songcontest/internal/model"
)

var (
	ErrWinnerNotFound  = errors.New("winner not found")
	ErrDuplicateWinner = errors.New("song is already a winner")
)

type WinnerRepository interface {
	Create(ctx context.Context, winner *model.Winner) error
	ByID(ctx context.Context, id string) (*model.WinnerEntry, error)
	List(ctx context.Context) ([]*model.WinnerEntry, error)
	ByUser(ctx context.Context, userID string) ([]*model.WinnerEntry, error)
	Delete(ctx context.Context, id string) error
}

type winnerRepository struct {
	db *sqlx.DB
}

func NewWinnerRepository(db *sqlx.DB) WinnerRepository {
	return &winnerRepository{db: db}
}

const winnerEntryQuery = `SELECT w.*, s.title AS song_title, u.username, u.email
	FROM winners w
	JOIN songs s ON s.id = w.song_id
	JOIN users u ON u.id = s.user_id`

// Create stores the winner row and flags the song in one transaction.
func (r *winnerRepository) Create(ctx context.Context, winner *model.Winner) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE songs SET is_winner = TRUE WHERE id = $1`, winner.SongID)
		if err != nil {
			return err
		}
		err = expectOne(result, ErrSongNotFound)
		if err != nil {
			return err
		}

		query := `INSERT INTO winners (id, song_id, position, admin_notes, prize_amount, featured_until, selected_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err = tx.ExecContext(ctx, query,
			winner.ID,
			winner.SongID,
			winner.Position,
			winner.AdminNotes,
			winner.PrizeAmount,
			winner.FeaturedUntil,
			winner.SelectedAt,
		)
		if err != nil {
			errStr := err.Error()
			if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
				return ErrDuplicateWinner
			}
			return err
		}
		return nil
	})
}

func (r *winnerRepository) ByID(ctx context.Context, id string) (*model.WinnerEntry, error) {
	entry := &model.WinnerEntry{}
	err := r.db.GetContext(ctx, entry, winnerEntryQuery+` WHERE w.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrWinnerNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *winnerRepository) List(ctx context.Context) ([]*model.WinnerEntry, error) {
	var entries []*model.WinnerEntry
	err := r.db.SelectContext(ctx, &entries, winnerEntryQuery+` ORDER BY w.position ASC, w.selected_at DESC`)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *winnerRepository) ByUser(ctx context.Context, userID string) ([]*model.WinnerEntry, error) {
	var entries []*model.WinnerEntry
	err := r.db.SelectContext(ctx, &entries, winnerEntryQuery+` WHERE s.user_id = $1 ORDER BY w.selected_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete removes the winner row and clears the song flag in one transaction.
func (r *winnerRepository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var songID string
		err := tx.GetContext(ctx, &songID, `DELETE FROM winners WHERE id = $1 RETURNING song_id`, id)
		if err == sql.ErrNoRows {
			return ErrWinnerNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE songs SET is_winner = FALSE WHERE id = $1`, songID)
		return err
	})
}
