package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
)

const (
	SongSortRecent = "recent"
	SongSortOldest = "oldest"
	SongSortRating = "rating"
	SongSortVotes  = "votes"
	SongSortViews  = "views"
)

var (
	ErrSongNotFound = errors.New("song not found")
)

type SongRepository interface {
	Create(ctx context.Context, song *model.Song) error
	ByID(ctx context.Context, id string) (*model.Song, error)
	List(ctx context.Context, filter model.SongFilter) ([]*model.Song, error)
	Count(ctx context.Context, filter model.SongFilter) (int, error)
	Update(ctx context.Context, song *model.Song) error
	IncrementViews(ctx context.Context, id string) error
	SetFeatured(ctx context.Context, id string, featured bool) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*model.ContestStats, error)
	TopArtists(ctx context.Context, limit int) ([]*model.ArtistStanding, error)
}

type songRepository struct {
	db *sqlx.DB
}

func NewSongRepository(db *sqlx.DB) SongRepository {
	return &songRepository{db: db}
}

const songColumns = `s.id, s.user_id, s.title, s.description, s.language, s.genre, s.ai_tool_used,
	s.view_count, s.vote_count, s.average_rating, s.is_featured, s.is_winner, s.submitted_at, s.updated_at,
	u.username`

func (r *songRepository) Create(ctx context.Context, song *model.Song) error {
	query := `INSERT INTO songs (id, user_id, title, description, language, genre, ai_tool_used, submitted_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		song.ID,
		song.UserID,
		song.Title,
		song.Description,
		song.Language,
		song.Genre,
		song.AIToolUsed,
		song.SubmittedAt,
		song.UpdatedAt,
	)
	return err
}

func (r *songRepository) ByID(ctx context.Context, id string) (*model.Song, error) {
	song := &model.Song{}
	query := `SELECT ` + songColumns + ` FROM songs s JOIN users u ON u.id = s.user_id WHERE s.id = $1`

	err := r.db.GetContext(ctx, song, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, err
	}
	return song, nil
}

// where builds the WHERE clause for a filter using numbered placeholders.
func (r *songRepository) where(filter model.SongFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(LOWER(s.title) LIKE $%d OR LOWER(s.description) LIKE $%d OR LOWER(s.genre) LIKE $%d OR LOWER(u.username) LIKE $%d)", n, n, n, n))
	}
	if filter.Language != "" {
		add("s.language = $%d", filter.Language)
	}
	if filter.Genre != "" {
		add("LOWER(s.genre) LIKE $%d", "%"+strings.ToLower(filter.Genre)+"%")
	}
	if filter.UserID != "" {
		add("s.user_id = $%d", filter.UserID)
	}
	if filter.Featured {
		conds = append(conds, "s.is_featured = TRUE")
	}
	if filter.RatedOnly {
		conds = append(conds, "s.average_rating > 0")
	}
	if filter.ViewedOnly {
		conds = append(conds, "s.view_count > 0")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *songRepository) List(ctx context.Context, filter model.SongFilter) ([]*model.Song, error) {
	var songs []*model.Song

	var orderBy string
	switch filter.OrderBy {
	case SongSortOldest:
		orderBy = " ORDER BY s.submitted_at ASC"
	case SongSortRating:
		orderBy = " ORDER BY s.average_rating DESC, s.vote_count DESC, s.submitted_at DESC"
	case SongSortVotes:
		orderBy = " ORDER BY s.vote_count DESC, s.submitted_at DESC"
	case SongSortViews:
		orderBy = " ORDER BY s.view_count DESC, s.submitted_at DESC"
	default:
		orderBy = " ORDER BY s.submitted_at DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	where, args := r.where(filter)
	args = append(args, limit, filter.Offset)
	query := `SELECT ` + songColumns + ` FROM songs s JOIN users u ON u.id = s.user_id` + where + orderBy +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	err := r.db.SelectContext(ctx, &songs, query, args...)
	if err != nil {
		return nil, err
	}
	return songs, nil
}

func (r *songRepository) Count(ctx context.Context, filter model.SongFilter) (int, error) {
	var count int
	where, args := r.where(filter)
	query := `SELECT COUNT(*) FROM songs s JOIN users u ON u.id = s.user_id` + where

	err := r.db.GetContext(ctx, &count, query, args...)
	return count, err
}

func (r *songRepository) Update(ctx context.Context, song *model.Song) error {
	song.UpdatedAt = time.Now().UTC()
	query := `UPDATE songs
	          SET title = $1, description = $2, language = $3, genre = $4, ai_tool_used = $5, updated_at = $6
	          WHERE id = $7 AND user_id = $8`

	result, err := r.db.ExecContext(ctx, query,
		song.Title,
		song.Description,
		song.Language,
		song.Genre,
		song.AIToolUsed,
		song.UpdatedAt,
		song.ID,
		song.UserID,
	)
	if err != nil {
		return err
	}
	return expectOne(result, ErrSongNotFound)
}

func (r *songRepository) IncrementViews(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE songs SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(result, ErrSongNotFound)
}

func (r *songRepository) SetFeatured(ctx context.Context, id string, featured bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE songs SET is_featured = $1 WHERE id = $2`, featured, id)
	if err != nil {
		return err
	}
	return expectOne(result, ErrSongNotFound)
}

func (r *songRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(result, ErrSongNotFound)
}

func (r *songRepository) Stats(ctx context.Context) (*model.ContestStats, error) {
	stats := &model.ContestStats{}
	query := `SELECT
		(SELECT COUNT(*) FROM songs) AS songs,
		(SELECT COUNT(*) FROM users WHERE is_active = TRUE) AS contestants,
		(SELECT COUNT(*) FROM votes) AS votes,
		(SELECT COUNT(*) FROM comments WHERE is_approved = TRUE) AS comments,
		(SELECT COUNT(*) FROM winners) AS winners`

	err := r.db.GetContext(ctx, stats, query)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// TopArtists ranks contestants by the number of votes their songs received.
func (r *songRepository) TopArtists(ctx context.Context, limit int) ([]*model.ArtistStanding, error) {
	var standings []*model.ArtistStanding
	query := `SELECT u.username, u.first_name, u.last_name,
		COUNT(v.id) AS total_votes,
		COALESCE(AVG(CAST(v.rating AS DOUBLE PRECISION)), 0) AS average_rating,
		COUNT(DISTINCT s.id) AS song_count
		FROM songs s
		JOIN users u ON u.id = s.user_id
		LEFT JOIN votes v ON v.song_id = s.id
		GROUP BY u.id, u.username, u.first_name, u.last_name
		HAVING COUNT(v.id) > 0
		ORDER BY total_votes DESC, average_rating DESC
		LIMIT $1`

	err := r.db.SelectContext(ctx, &standings, query, limit)
	if err != nil {
		return nil, err
	}
	return standings, nil
}

func expectOne(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
