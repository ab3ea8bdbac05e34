package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/db"
	"github.com/spado/songcontest/internal/model"
)

var (
	ErrVoteNotFound = errors.New("vote not found")
)

type VoteRepository interface {
	Upsert(ctx context.Context, vote *model.Vote) (*model.Vote, error)
	ByUserAndSong(ctx context.Context, userID, songID string) (*model.Vote, error)
}

type voteRepository struct {
	db *sqlx.DB
}

func NewVoteRepository(db *sqlx.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Upsert stores the user's single vote for a song and refreshes the song's
// vote_count and average_rating in the same transaction.
func (r *voteRepository) Upsert(ctx context.Context, vote *model.Vote) (*model.Vote, error) {
	if vote.ID == "" {
		vote.ID = uuid.New().String()
	}

	var stored model.Vote
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO votes (id, user_id, song_id, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, song_id)
			DO UPDATE SET rating = excluded.rating, comment = excluded.comment
			RETURNING *
		`
		err := tx.GetContext(ctx, &stored, query,
			vote.ID,
			vote.UserID,
			vote.SongID,
			vote.Rating,
			vote.Comment,
			vote.CreatedAt,
		)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE songs
			SET vote_count = (SELECT COUNT(*) FROM votes WHERE song_id = $1),
			    average_rating = COALESCE((SELECT AVG(CAST(rating AS DOUBLE PRECISION)) FROM votes WHERE song_id = $1), 0)
			WHERE id = $1
		`, vote.SongID)
		if err != nil {
			return err
		}
		return expectOne(result, ErrSongNotFound)
	})
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

func (r *voteRepository) ByUserAndSong(ctx context.Context, userID, songID string) (*model.Vote, error) {
	vote := &model.Vote{}
	err := r.db.GetContext(ctx, vote, `SELECT * FROM votes WHERE user_id = $1 AND song_id = $2`, userID, songID)
	if err == sql.ErrNoRows {
		return nil, ErrVoteNotFound
	}
	if err != nil {
		return nil, err
	}
	return vote, nil
}
