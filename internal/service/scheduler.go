package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spado/songcontest/internal/logger"
)

// Scheduler runs the expired code cleanup. Contest phases are not swept here;
// they advance when a request or command reads them.
type Scheduler struct {
	cron         *cron.Cron
	verification *VerificationService
	timeout      time.Duration
}

func NewScheduler(schedule string, verification *VerificationService) (*Scheduler, error) {
	cronLogger := logger.CronLogger{Logger: slog.Default()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		verification: verification,
		timeout:      time.Minute,
	}

	_, err := s.cron.AddFunc(schedule, s.cleanupCodes)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) cleanupCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.verification.CleanupExpired(ctx)
	if err != nil {
		slog.Error("scheduled code cleanup failed", "error", err)
	}
}
