package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spado/songcontest/internal/metrics"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
)

var (
	ErrInvalidPhaseStatus = errors.New("invalid contest phase status")
	ErrPhaseDeadline      = errors.New("contest phase deadline is required")
)

const (
	DescriptionJudging         = "Contest submissions are now being evaluated by our judges."
	DescriptionWinnerAnnounced = "Winners have been announced! Check the winners page."

	MsgNoPhase = "No active contest phase found."
)

// PhaseStatus is the snapshot of the contest lifecycle shown to visitors.
type PhaseStatus struct {
	Phase         *model.ContestPhase `json:"phase"`
	CanSubmit     bool                `json:"can_submit"`
	Message       string              `json:"message"`
	TimeRemaining string              `json:"time_remaining,omitempty"`
}

type PhaseOptions struct {
	JudgingDuration time.Duration
	WinnersDuration time.Duration
	Clock           Clock
}

type PhaseService struct {
	repo            repository.PhaseRepository
	judgingDuration time.Duration
	winnersDuration time.Duration
	now             Clock
}

func NewPhaseService(repo repository.PhaseRepository, opts PhaseOptions) *PhaseService {
	s := &PhaseService{
		repo:            repo,
		judgingDuration: opts.JudgingDuration,
		winnersDuration: opts.WinnersDuration,
		now:             opts.Clock,
	}
	if s.judgingDuration <= 0 {
		s.judgingDuration = 7 * 24 * time.Hour
	}
	if s.winnersDuration <= 0 {
		s.winnersDuration = 30 * 24 * time.Hour
	}
	if s.now == nil {
		s.now = systemClock
	}
	return s
}

// AdvanceExpiredPhases moves every phase whose deadline has passed exactly one
// step forward and returns how many were advanced. Each update is guarded by
// the status that was read, so concurrent sweeps advance a phase at most once
// and a freshly advanced phase is not expired again in the same call.
func (s *PhaseService) AdvanceExpiredPhases(ctx context.Context) (int, error) {
	now := s.now()

	expired, err := s.repo.Expired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to load expired phases: %w", err)
	}

	advanced := 0
	for _, phase := range expired {
		var next, description string
		var deadline time.Time
		switch phase.Status {
		case model.PhaseStatusOpen:
			next, description, deadline = model.PhaseStatusJudging, DescriptionJudging, now.Add(s.judgingDuration)
		case model.PhaseStatusJudging:
			next, description, deadline = model.PhaseStatusWinnerAnnounced, DescriptionWinnerAnnounced, now.Add(s.winnersDuration)
		default:
			continue
		}

		ok, err := s.repo.Advance(ctx, phase, next, deadline, description, now)
		if err != nil {
			return advanced, fmt.Errorf("failed to advance phase %s: %w", phase.ID, err)
		}
		if !ok {
			slog.Debug("phase already advanced by another request", "phase_id", phase.ID)
			continue
		}

		advanced++
		metrics.PhaseTransitions.WithLabelValues(phase.Status, next).Inc()
		slog.Info("contest phase advanced", "phase_id", phase.ID, "from", phase.Status, "to", next, "deadline", deadline)
	}

	return advanced, nil
}

// CurrentPhase returns the phase with the nearest deadline that has not
// passed, falling back to the most recent phase for display. It returns nil
// when no phase exists.
func (s *PhaseService) CurrentPhase(ctx context.Context) (*model.ContestPhase, error) {
	phase, err := s.activePhase(ctx)
	if err != nil || phase != nil {
		return phase, err
	}

	phase, err = s.repo.Latest(ctx)
	if errors.Is(err, repository.ErrPhaseNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest phase: %w", err)
	}
	return phase, nil
}

func (s *PhaseService) activePhase(ctx context.Context) (*model.ContestPhase, error) {
	phase, err := s.repo.Current(ctx, s.now())
	if errors.Is(err, repository.ErrPhaseNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current phase: %w", err)
	}
	return phase, nil
}

// CanSubmitSongs reports whether the active phase accepts submissions. The
// display fallback of CurrentPhase is never consulted.
func (s *PhaseService) CanSubmitSongs(ctx context.Context) (bool, error) {
	phase, err := s.activePhase(ctx)
	if err != nil {
		return false, err
	}
	return phase != nil && phase.Status == model.PhaseStatusOpen, nil
}

// PhaseMessage describes the current phase for visitors.
func (s *PhaseService) PhaseMessage(ctx context.Context) (string, error) {
	phase, err := s.CurrentPhase(ctx)
	if err != nil {
		return "", err
	}
	return phaseMessage(phase, s.now()), nil
}

func phaseMessage(phase *model.ContestPhase, now time.Time) string {
	if phase == nil {
		return MsgNoPhase
	}

	active := phase.IsActive(now)
	switch phase.Status {
	case model.PhaseStatusOpen:
		if active {
			return fmt.Sprintf("Song submissions are open until %s.", phase.DeadlineDate.Format("January 02, 2006 at 03:04 PM"))
		}
		return "The submission deadline has passed. Submissions are now closed."
	case model.PhaseStatusJudging:
		if active {
			return fmt.Sprintf("Contest is in judging phase. Results will be announced by %s.", phase.DeadlineDate.Format("January 02, 2006"))
		}
		return "Judging phase has ended. Winners should be announced soon."
	case model.PhaseStatusWinnerAnnounced:
		return "Winners have been announced! Check the winners page to see the results."
	}
	return "Contest status unknown."
}

// Status sweeps expired phases and then reports the current state.
func (s *PhaseService) Status(ctx context.Context) (*PhaseStatus, error) {
	_, err := s.AdvanceExpiredPhases(ctx)
	if err != nil {
		return nil, err
	}

	phase, err := s.CurrentPhase(ctx)
	if err != nil {
		return nil, err
	}
	canSubmit, err := s.CanSubmitSongs(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := &PhaseStatus{
		Phase:     phase,
		CanSubmit: canSubmit,
		Message:   phaseMessage(phase, now),
	}
	if phase != nil && phase.IsActive(now) {
		status.TimeRemaining = strings.TrimSpace(humanize.RelTime(now, phase.DeadlineDate, "remaining", ""))
	}
	return status, nil
}

func (s *PhaseService) ListPhases(ctx context.Context) ([]*model.ContestPhase, error) {
	return s.repo.List(ctx)
}

func (s *PhaseService) Phase(ctx context.Context, id string) (*model.ContestPhase, error) {
	return s.repo.ByID(ctx, id)
}

func (s *PhaseService) CreatePhase(ctx context.Context, status, description string, deadline time.Time) (*model.ContestPhase, error) {
	err := validatePhase(status, deadline)
	if err != nil {
		return nil, err
	}

	phase := &model.ContestPhase{
		Status:       status,
		Description:  strings.TrimSpace(description),
		DeadlineDate: deadline.UTC(),
		CreatedAt:    s.now(),
	}
	err = s.repo.Create(ctx, phase)
	if err != nil {
		return nil, fmt.Errorf("failed to create phase: %w", err)
	}

	slog.Info("contest phase created", "phase_id", phase.ID, "status", status, "deadline", phase.DeadlineDate)
	return phase, nil
}

func (s *PhaseService) UpdatePhase(ctx context.Context, id, status, description string, deadline time.Time) (*model.ContestPhase, error) {
	err := validatePhase(status, deadline)
	if err != nil {
		return nil, err
	}

	phase, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	phase.Status = status
	phase.Description = strings.TrimSpace(description)
	phase.DeadlineDate = deadline.UTC()

	err = s.repo.Update(ctx, phase)
	if err != nil {
		return nil, fmt.Errorf("failed to update phase: %w", err)
	}
	return phase, nil
}

func (s *PhaseService) DeletePhase(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func validatePhase(status string, deadline time.Time) error {
	if !model.IsPhaseStatus(status) {
		return ErrInvalidPhaseStatus
	}
	if deadline.IsZero() {
		return ErrPhaseDeadline
	}
	return nil
}
