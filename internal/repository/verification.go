package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/db"
	"github.com/spado/songcontest/internal/model"
)

var (
	ErrCodeNotFound = errors.New("verification code not found")
)

type VerificationRepository interface {
	Issue(ctx context.Context, code *model.VerificationCode, supersede bool) (*model.VerificationCode, error)
	Attempt(ctx context.Context, userID, email, codeType, code string, now time.Time, maxAttempts int) (*model.VerificationCode, bool, error)
	Live(ctx context.Context, userID, email, codeType string) (*model.VerificationCode, error)
	CountIssuedSince(ctx context.Context, userID, email, codeType string, since time.Time) (int, error)
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
	PruneIssuances(ctx context.Context, before time.Time) (int64, error)
}

type verificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

// Issue creates the live record for (user, email, type) or resets the existing
// one in place. The conflict target is the partial unique index on unused
// rows, so concurrent issuers converge on a single row whose id and
// created_at are preserved. With supersede set, every earlier record of the
// same user and type is removed first.
//
// Each call also appends to verification_issuances, which backs the resend
// rate limit.
func (r *verificationRepository) Issue(ctx context.Context, code *model.VerificationCode, supersede bool) (*model.VerificationCode, error) {
	if code.ID == "" {
		code.ID = uuid.New().String()
	}

	var issued model.VerificationCode
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if supersede {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM verification_codes WHERE user_id = $1 AND type = $2`,
				code.UserID, code.Type,
			)
			if err != nil {
				return fmt.Errorf("failed to supersede codes: %w", err)
			}
		}

		query := `
			INSERT INTO verification_codes (id, user_id, email, type, code, attempts, is_used, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, 0, FALSE, $6, $7)
			ON CONFLICT (user_id, email, type) WHERE is_used = FALSE
			DO UPDATE SET code = excluded.code, attempts = 0, is_used = FALSE, expires_at = excluded.expires_at
			RETURNING *
		`
		err := tx.GetContext(ctx, &issued, query,
			code.ID,
			code.UserID,
			code.Email,
			code.Type,
			code.Code,
			code.CreatedAt,
			code.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert code: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO verification_issuances (id, user_id, email, type, issued_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), code.UserID, code.Email, code.Type, code.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to log issuance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &issued, nil
}

// Attempt records a verification attempt against the unused record whose code
// matches exactly. The attempt counter is incremented first; the record is
// then marked used only if it is still valid. Both writes share a transaction
// and the used flag is set conditionally, so two concurrent submissions of
// the same code cannot both consume it.
//
// Returns ErrCodeNotFound when no unused record matches. Otherwise returns the
// record and whether it was consumed by this call.
func (r *verificationRepository) Attempt(ctx context.Context, userID, email, codeType, code string, now time.Time, maxAttempts int) (*model.VerificationCode, bool, error) {
	var rec model.VerificationCode
	consumed := false

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE verification_codes
			SET attempts = attempts + 1
			WHERE user_id = $1 AND email = $2 AND type = $3 AND code = $4 AND is_used = FALSE
			RETURNING *
		`
		err := tx.GetContext(ctx, &rec, query, userID, email, codeType, code)
		if err == sql.ErrNoRows {
			return ErrCodeNotFound
		}
		if err != nil {
			return err
		}

		if !rec.IsValid(now, maxAttempts) {
			return nil
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE verification_codes SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`,
			rec.ID,
		)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrCodeNotFound
		}

		rec.IsUsed = true
		consumed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &rec, consumed, nil
}

func (r *verificationRepository) Live(ctx context.Context, userID, email, codeType string) (*model.VerificationCode, error) {
	var rec model.VerificationCode
	query := `SELECT * FROM verification_codes WHERE user_id = $1 AND email = $2 AND type = $3 AND is_used = FALSE`

	err := r.db.GetContext(ctx, &rec, query, userID, email, codeType)
	if err == sql.ErrNoRows {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *verificationRepository) CountIssuedSince(ctx context.Context, userID, email, codeType string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM verification_issuances WHERE user_id = $1 AND email = $2 AND type = $3 AND issued_at >= $4`
	err := r.db.GetContext(ctx, &count, query, userID, email, codeType, since)
	return count, err
}

// CleanupExpired removes every code whose expiry lies before now, used or not.
func (r *verificationRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *verificationRepository) PruneIssuances(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM verification_issuances WHERE issued_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
