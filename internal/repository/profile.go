package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
)

type ProfileRepository interface {
	ByUsername(ctx context.Context, username string) (*model.Profile, error)
	Update(ctx context.Context, userID string, update model.ProfileUpdate) error
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) ByUsername(ctx context.Context, username string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		SELECT id, username, first_name, last_name, bio, city, total_songs_uploaded, created_at
		FROM users
		WHERE username = $1 AND is_active = TRUE
	`, username)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, userID string, update model.ProfileUpdate) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, bio = $3, city = $4, phone_number = $5
		WHERE id = $6
	`, update.FirstName, update.LastName, update.Bio, update.City, update.PhoneNumber, userID)

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
