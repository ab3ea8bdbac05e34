package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByUsername(ctx context.Context, username string) (*model.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	VerifyEmail(ctx context.Context, id string, at time.Time) (bool, error)
	SetStaff(ctx context.Context, id string, staff bool) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	AdjustSongsUploaded(ctx context.Context, id string, delta int) error
	List(ctx context.Context, search string, limit, offset int) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, password_hash, first_name, last_name, is_active, is_staff, bio, city, phone_number, total_songs_uploaded, email_verified_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.IsActive,
		user.IsStaff,
		user.Bio,
		user.City,
		user.PhoneNumber,
		user.TotalSongsUploaded,
		user.EmailVerifiedAt,
		user.CreatedAt,
	)
	if err != nil {
		// Unique constraint violation (works for both SQLite and PostgreSQL)
		errStr := err.Error()
		if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
			if strings.Contains(errStr, "username") {
				return ErrDuplicateUsername
			}
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	return r.one(ctx, `SELECT * FROM users WHERE id = $1`, id)
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.one(ctx, `SELECT * FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r *userRepository) ByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.one(ctx, `SELECT * FROM users WHERE username = $1`, username)
}

func (r *userRepository) one(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetActive is the staff switch. Activating by hand also counts as a
// verified email.
func (r *userRepository) SetActive(ctx context.Context, id string, active bool) error {
	if !active {
		return r.exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, id)
	}
	return r.exec(ctx, `UPDATE users SET is_active = TRUE, email_verified_at = COALESCE(email_verified_at, $1) WHERE id = $2`,
		time.Now().UTC().Truncate(time.Second), id)
}

// VerifyEmail activates an account whose email was never verified. It
// reports false when the email was already verified, leaving is_active
// untouched.
func (r *userRepository) VerifyEmail(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = TRUE, email_verified_at = $1 WHERE id = $2 AND email_verified_at IS NULL`,
		at, id)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *userRepository) SetStaff(ctx context.Context, id string, staff bool) error {
	return r.exec(ctx, `UPDATE users SET is_staff = $1 WHERE id = $2`, staff, id)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
}

func (r *userRepository) AdjustSongsUploaded(ctx context.Context, id string, delta int) error {
	query := `UPDATE users
	          SET total_songs_uploaded = CASE WHEN total_songs_uploaded + $1 < 0 THEN 0 ELSE total_songs_uploaded + $1 END
	          WHERE id = $2`
	return r.exec(ctx, query, delta, id)
}

func (r *userRepository) List(ctx context.Context, search string, limit, offset int) ([]*model.User, error) {
	var users []*model.User
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	args := []any{limit, offset}
	if search = strings.TrimSpace(search); search != "" {
		query = `SELECT * FROM users
		         WHERE LOWER(username) LIKE $1 OR LOWER(email) LIKE $1 OR LOWER(first_name) LIKE $1 OR LOWER(last_name) LIKE $1
		         ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []any{"%" + strings.ToLower(search) + "%", limit, offset}
	}

	err := r.db.SelectContext(ctx, &users, query, args...)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
