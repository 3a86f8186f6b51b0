package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const jobTimeout = 50 * time.Second

// ExamStatusSyncer moves exams through scheduled → live → completed.
type ExamStatusSyncer interface {
	SyncStatuses(ctx context.Context, now time.Time) error
}

// AttemptExpirer closes in-progress attempts whose time ran out.
type AttemptExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs the periodic exam housekeeping jobs.
type Scheduler struct {
	cron     *cron.Cron
	exams    ExamStatusSyncer
	attempts AttemptExpirer
	log      zerolog.Logger
	now      func() time.Time
}

// NewScheduler registers both jobs on the given cron specs. Overlapping runs
// of the same job are skipped.
func NewScheduler(exams ExamStatusSyncer, attempts AttemptExpirer, statusSpec, expirySpec string, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		exams:    exams,
		attempts: attempts,
		log:      log.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := s.cron.AddFunc(statusSpec, s.syncStatuses); err != nil {
		return nil, fmt.Errorf("exam status spec %q: %w", statusSpec, err)
	}
	if _, err := s.cron.AddFunc(expirySpec, s.expireAttempts); err != nil {
		return nil, fmt.Errorf("attempt expiry spec %q: %w", expirySpec, err)
	}
	return s, nil
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop prevents new runs and waits for running jobs or ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.log.Info().Msg("Scheduler stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("Scheduler stop timed out")
	}
}

func (s *Scheduler) syncStatuses() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.exams.SyncStatuses(ctx, s.now()); err != nil {
		s.log.Error().Err(err).Msg("Exam status sync failed")
	}
}

func (s *Scheduler) expireAttempts() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.attempts.ExpireOverdue(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("Attempt expiry failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("count", n).Msg("Overdue attempts expired")
	}
}
