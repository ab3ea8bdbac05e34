package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
)

var (
	ErrPhaseNotFound = errors.New("contest phase not found")
)

type PhaseRepository interface {
	Create(ctx context.Context, phase *model.ContestPhase) error
	ByID(ctx context.Context, id string) (*model.ContestPhase, error)
	List(ctx context.Context) ([]*model.ContestPhase, error)
	Update(ctx context.Context, phase *model.ContestPhase) error
	Delete(ctx context.Context, id string) error
	Expired(ctx context.Context, now time.Time) ([]*model.ContestPhase, error)
	Advance(ctx context.Context, phase *model.ContestPhase, toStatus string, deadline time.Time, description string, now time.Time) (bool, error)
	Current(ctx context.Context, now time.Time) (*model.ContestPhase, error)
	Latest(ctx context.Context) (*model.ContestPhase, error)
}

type phaseRepository struct {
	db *sqlx.DB
}

func NewPhaseRepository(db *sqlx.DB) PhaseRepository {
	return &phaseRepository{db: db}
}

func (r *phaseRepository) Create(ctx context.Context, phase *model.ContestPhase) error {
	if phase.ID == "" {
		phase.ID = uuid.New().String()
	}
	if phase.CreatedAt.IsZero() {
		phase.CreatedAt = time.Now().UTC()
	}
	phase.UpdatedAt = phase.CreatedAt

	query := `INSERT INTO contest_phases (id, status, description, deadline_date, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		phase.ID,
		phase.Status,
		phase.Description,
		phase.DeadlineDate,
		phase.CreatedAt,
		phase.UpdatedAt,
	)
	return err
}

func (r *phaseRepository) ByID(ctx context.Context, id string) (*model.ContestPhase, error) {
	return r.one(ctx, `SELECT * FROM contest_phases WHERE id = $1`, id)
}

func (r *phaseRepository) List(ctx context.Context) ([]*model.ContestPhase, error) {
	var phases []*model.ContestPhase
	err := r.db.SelectContext(ctx, &phases, `SELECT * FROM contest_phases ORDER BY deadline_date DESC`)
	if err != nil {
		return nil, err
	}
	return phases, nil
}

func (r *phaseRepository) Update(ctx context.Context, phase *model.ContestPhase) error {
	phase.UpdatedAt = time.Now().UTC()
	query := `UPDATE contest_phases
	          SET status = $1, description = $2, deadline_date = $3, updated_at = $4
	          WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		phase.Status,
		phase.Description,
		phase.DeadlineDate,
		phase.UpdatedAt,
		phase.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPhaseNotFound
	}
	return nil
}

func (r *phaseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contest_phases WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPhaseNotFound
	}
	return nil
}

// Expired returns phases whose deadline lies before now, oldest deadline first.
func (r *phaseRepository) Expired(ctx context.Context, now time.Time) ([]*model.ContestPhase, error) {
	var phases []*model.ContestPhase
	query := `SELECT * FROM contest_phases WHERE deadline_date < $1 ORDER BY deadline_date ASC`

	err := r.db.SelectContext(ctx, &phases, query, now)
	if err != nil {
		return nil, err
	}
	return phases, nil
}

// Advance moves phase to toStatus only if the stored row still has the status
// and expired deadline that were read. It reports false when another caller
// advanced the phase first.
func (r *phaseRepository) Advance(ctx context.Context, phase *model.ContestPhase, toStatus string, deadline time.Time, description string, now time.Time) (bool, error) {
	query := `UPDATE contest_phases
	          SET status = $1, deadline_date = $2, description = $3, updated_at = $4
	          WHERE id = $5 AND status = $6 AND deadline_date < $4`

	result, err := r.db.ExecContext(ctx, query,
		toStatus,
		deadline,
		description,
		now,
		phase.ID,
		phase.Status,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// Current returns the phase with the nearest deadline that has not passed.
func (r *phaseRepository) Current(ctx context.Context, now time.Time) (*model.ContestPhase, error) {
	query := `SELECT * FROM contest_phases WHERE deadline_date >= $1 ORDER BY deadline_date ASC LIMIT 1`
	return r.one(ctx, query, now)
}

// Latest returns the phase with the most recent deadline, expired or not.
func (r *phaseRepository) Latest(ctx context.Context) (*model.ContestPhase, error) {
	query := `SELECT * FROM contest_phases ORDER BY deadline_date DESC, created_at DESC LIMIT 1`
	return r.one(ctx, query)
}

func (r *phaseRepository) one(ctx context.Context, query string, args ...any) (*model.ContestPhase, error) {
	phase := &model.ContestPhase{}
	err := r.db.GetContext(ctx, phase, query, args...)
	if err == sql.ErrNoRows {
		return nil, ErrPhaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return phase, nil
}
