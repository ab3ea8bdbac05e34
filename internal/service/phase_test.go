package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func newPhaseService(t *testing.T) (*service.PhaseService, *sqlx.DB, *testutil.Clock) {
	t.Helper()

	database := testutil.SetupTestDB(t)
	clock := testutil.NewClock(testutil.Epoch)
	svc := service.NewPhaseService(repository.NewPhaseRepository(database), service.PhaseOptions{
		JudgingDuration: 7 * day,
		WinnersDuration: 30 * day,
		Clock:           clock.Now,
	})
	return svc, database, clock
}

func reloadPhase(t *testing.T, svc *service.PhaseService, id string) *model.ContestPhase {
	t.Helper()
	phase, err := svc.Phase(t.Context(), id)
	require.NoError(t, err)
	return phase
}

func TestAdvanceOpenPhaseToJudging(t *testing.T) {
	svc, db, clock := newPhaseService(t)
	now := clock.Now()
	phase := testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, now.Add(-time.Second))

	advanced, err := svc.AdvanceExpiredPhases(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)

	got := reloadPhase(t, svc, phase.ID)
	assert.Equal(t, model.PhaseStatusJudging, got.Status)
	assert.True(t, got.DeadlineDate.Equal(now.Add(7*day)))
	assert.Equal(t, service.DescriptionJudging, got.Description)

	// A second sweep right away finds nothing to do.
	advanced, err = svc.AdvanceExpiredPhases(t.Context())
	require.NoError(t, err)
	assert.Zero(t, advanced)
	assert.Equal(t, model.PhaseStatusJudging, reloadPhase(t, svc, phase.ID).Status)
}

func TestAdvanceJudgingPhaseToWinnerAnnounced(t *testing.T) {
	svc, db, clock := newPhaseService(t)
	now := clock.Now()
	phase := testutil.CreateTestPhase(t, db, model.PhaseStatusJudging, now.Add(-40*day))

	advanced, err := svc.AdvanceExpiredPhases(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)

	got := reloadPhase(t, svc, phase.ID)
	assert.Equal(t, model.PhaseStatusWinnerAnnounced, got.Status)
	assert.True(t, got.DeadlineDate.Equal(now.Add(30*day)))
	assert.Equal(t, service.DescriptionWinnerAnnounced, got.Description)
}

func TestAdvanceLeavesWinnerAnnouncedAlone(t *testing.T) {
	svc, db, clock := newPhaseService(t)
	deadline := clock.Now().Add(-day)
	phase := testutil.CreateTestPhase(t, db, model.PhaseStatusWinnerAnnounced, deadline)

	advanced, err := svc.AdvanceExpiredPhases(t.Context())
	require.NoError(t, err)
	assert.Zero(t, advanced)

	got := reloadPhase(t, svc, phase.ID)
	assert.Equal(t, model.PhaseStatusWinnerAnnounced, got.Status)
	assert.True(t, got.DeadlineDate.Equal(deadline))
}

func TestAdvanceMovesOneStepPerSweep(t *testing.T) {
	svc, db, clock := newPhaseService(t)
	phase := testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, clock.Now().Add(-90*day))

	_, err := svc.AdvanceExpiredPhases(t.Context())
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusJudging, reloadPhase(t, svc, phase.ID).Status)

	clock.Advance(8 * day)
	_, err = svc.AdvanceExpiredPhases(t.Context())
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusWinnerAnnounced, reloadPhase(t, svc, phase.ID).Status)
}

func TestAdvanceHandlesSeveralExpiredPhases(t *testing.T) {
	svc, db, clock := newPhaseService(t)
	now := clock.Now()
	open := testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, now.Add(-2*day))
	judging := testutil.CreateTestPhase(t, db, model.PhaseStatusJudging, now.Add(-day))
	future := testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, now.Add(3*day))

	advanced, err := svc.AdvanceExpiredPhases(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, advanced)

	assert.Equal(t, model.PhaseStatusJudging, reloadPhase(t, svc, open.ID).Status)
	assert.Equal(t, model.PhaseStatusWinnerAnnounced, reloadPhase(t, svc, judging.ID).Status)
	assert.Equal(t, model.PhaseStatusOpen, reloadPhase(t, svc, future.ID).Status)
}

func TestConcurrentSweepsAdvanceOnce(t *testing.T) {
	svc, db, clock := newPhaseService(t)
	phase := testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, clock.Now().Add(-time.Minute))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.AdvanceExpiredPhases(t.Context())
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
	assert.Equal(t, model.PhaseStatusJudging, reloadPhase(t, svc, phase.ID).Status)
}

func TestCurrentPhase(t *testing.T) {
	t.Run("no phases", func(t *testing.T) {
		svc, _, _ := newPhaseService(t)

		phase, err := svc.CurrentPhase(t.Context())
		require.NoError(t, err)
		assert.Nil(t, phase)
	})

	t.Run("nearest future deadline wins", func(t *testing.T) {
		svc, db, clock := newPhaseService(t)
		now := clock.Now()
		testutil.CreateTestPhase(t, db, model.PhaseStatusJudging, now.Add(10*day))
		near := testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, now.Add(2*day))
		testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, now.Add(-day))

		phase, err := svc.CurrentPhase(t.Context())
		require.NoError(t, err)
		assert.Equal(t, near.ID, phase.ID)
	})

	t.Run("falls back to latest expired phase", func(t *testing.T) {
		svc, db, clock := newPhaseService(t)
		now := clock.Now()
		testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, now.Add(-5*day))
		latest := testutil.CreateTestPhase(t, db, model.PhaseStatusWinnerAnnounced, now.Add(-day))

		phase, err := svc.CurrentPhase(t.Context())
		require.NoError(t, err)
		assert.Equal(t, latest.ID, phase.ID)
	})
}

func TestCanSubmitSongs(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		deadline time.Duration
		want     bool
	}{
		{"open and active", model.PhaseStatusOpen, day, true},
		{"judging", model.PhaseStatusJudging, day, false},
		{"winners announced", model.PhaseStatusWinnerAnnounced, day, false},
		{"open but expired", model.PhaseStatusOpen, -day, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, clock := newPhaseService(t)
			testutil.CreateTestPhase(t, db, tt.status, clock.Now().Add(tt.deadline))

			got, err := svc.CanSubmitSongs(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no phase", func(t *testing.T) {
		svc, _, _ := newPhaseService(t)

		got, err := svc.CanSubmitSongs(t.Context())
		require.NoError(t, err)
		assert.False(t, got)
	})
}

func TestPhaseMessage(t *testing.T) {
	t.Run("no phase", func(t *testing.T) {
		svc, _, _ := newPhaseService(t)

		msg, err := svc.PhaseMessage(t.Context())
		require.NoError(t, err)
		assert.Equal(t, service.MsgNoPhase, msg)
	})

	t.Run("open", func(t *testing.T) {
		svc, db, _ := newPhaseService(t)
		testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, time.Date(2026, time.March, 15, 18, 30, 0, 0, time.UTC))

		msg, err := svc.PhaseMessage(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "Song submissions are open until March 15, 2026 at 06:30 PM.", msg)
	})

	t.Run("open past deadline", func(t *testing.T) {
		svc, db, clock := newPhaseService(t)
		testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, clock.Now().Add(-time.Hour))

		msg, err := svc.PhaseMessage(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "The submission deadline has passed. Submissions are now closed.", msg)
	})

	t.Run("judging", func(t *testing.T) {
		svc, db, _ := newPhaseService(t)
		testutil.CreateTestPhase(t, db, model.PhaseStatusJudging, time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC))

		msg, err := svc.PhaseMessage(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "Contest is in judging phase. Results will be announced by April 02, 2026.", msg)
	})

	t.Run("winners", func(t *testing.T) {
		svc, db, clock := newPhaseService(t)
		testutil.CreateTestPhase(t, db, model.PhaseStatusWinnerAnnounced, clock.Now().Add(day))

		msg, err := svc.PhaseMessage(t.Context())
		require.NoError(t, err)
		assert.Contains(t, msg, "Winners have been announced")
	})
}

func TestStatusSweepsBeforeReporting(t *testing.T) {
	svc, db, clock := newPhaseService(t)
	testutil.CreateTestPhase(t, db, model.PhaseStatusOpen, clock.Now().Add(-time.Minute))

	status, err := svc.Status(t.Context())
	require.NoError(t, err)
	require.NotNil(t, status.Phase)
	assert.Equal(t, model.PhaseStatusJudging, status.Phase.Status)
	assert.False(t, status.CanSubmit)
	assert.NotEmpty(t, status.TimeRemaining)
}

func TestCreatePhaseValidates(t *testing.T) {
	svc, _, clock := newPhaseService(t)

	_, err := svc.CreatePhase(t.Context(), "voting", "", clock.Now().Add(day))
	assert.ErrorIs(t, err, service.ErrInvalidPhaseStatus)

	_, err = svc.CreatePhase(t.Context(), model.PhaseStatusOpen, "", time.Time{})
	assert.ErrorIs(t, err, service.ErrPhaseDeadline)

	phase, err := svc.CreatePhase(t.Context(), model.PhaseStatusOpen, "  Round one  ", clock.Now().Add(day))
	require.NoError(t, err)
	assert.Equal(t, "Round one", phase.Description)
	assert.NotEmpty(t, phase.ID)
}
