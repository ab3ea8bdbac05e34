package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
)

var (
	ErrCommentNotFound = errors.New("comment not found")
)

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	BySong(ctx context.Context, songID string, approvedOnly bool) ([]*model.Comment, error)
	SetApproved(ctx context.Context, id string, approved bool) error
	Delete(ctx context.Context, id string) error
}

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	query := `INSERT INTO comments (id, user_id, song_id, content, is_approved, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.UserID,
		comment.SongID,
		comment.Content,
		comment.IsApproved,
		comment.CreatedAt,
	)
	return err
}

func (r *commentRepository) BySong(ctx context.Context, songID string, approvedOnly bool) ([]*model.Comment, error) {
	var comments []*model.Comment
	query := `SELECT c.*, u.username FROM comments c JOIN users u ON u.id = c.user_id WHERE c.song_id = $1`
	if approvedOnly {
		query += ` AND c.is_approved = TRUE`
	}
	query += ` ORDER BY c.created_at DESC`

	err := r.db.SelectContext(ctx, &comments, query, songID)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) SetApproved(ctx context.Context, id string, approved bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE comments SET is_approved = $1 WHERE id = $2`, approved, id)
	if err != nil {
		return err
	}
	return expectOne(result, ErrCommentNotFound)
}

func (r *commentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(result, ErrCommentNotFound)
}
