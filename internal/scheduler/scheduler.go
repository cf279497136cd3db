// Package scheduler runs the periodic maintenance jobs: email queue delivery,
// retention cleanup, and rate limiter pruning.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/store"
)

// Retention windows for the cleanup job.
const (
	activityRetention  = 365 * 24 * time.Hour
	sentEmailRetention = 30 * 24 * time.Hour
	emailBatchSize     = 50
)

// Scheduler handles the recurring background jobs.
type Scheduler struct {
	db      *sql.DB
	emails  *service.EmailService
	sender  service.Sender
	limiter *service.LoginLimiter
	cron    *cron.Cron
	logger  *slog.Logger
}

// New creates a new scheduler instance.
func New(db *sql.DB, emails *service.EmailService, sender service.Sender,
	limiter *service.LoginLimiter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:      db,
		emails:  emails,
		sender:  sender,
		limiter: limiter,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start registers the jobs and begins the cron loop: email delivery every
// minute, cleanup hourly.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", func() {
		if err := s.DeliverEmails(); err != nil {
			s.logger.Error("failed to deliver queued emails", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.Cleanup(); err != nil {
			s.logger.Error("failed to run cleanup", "error", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// DeliverEmails sends a batch of queued emails.
func (s *Scheduler) DeliverEmails() error {
	sent, err := s.emails.DeliverPending(context.Background(), s.sender, emailBatchSize)
	if err != nil {
		return err
	}
	if sent > 0 {
		s.logger.Info("delivered queued emails", "count", sent)
	}
	return nil
}

// Cleanup applies the retention windows and prunes in-memory limiter state.
func (s *Scheduler) Cleanup() error {
	ctx := context.Background()
	queries := store.New(s.db)
	now := time.Now()

	activity, err := queries.DeleteActivityBefore(ctx, now.Add(-activityRetention))
	if err != nil {
		return err
	}

	emails, err := queries.DeleteSentEmailsBefore(ctx, now.Add(-sentEmailRetention))
	if err != nil {
		return err
	}

	tokens, err := queries.ClearExpiredResetTokens(ctx)
	if err != nil {
		return err
	}

	pruned := s.limiter.Prune()

	if activity+emails+tokens > 0 || pruned > 0 {
		s.logger.Info("cleanup finished",
			"activity_deleted", activity,
			"emails_deleted", emails,
			"reset_tokens_cleared", tokens,
			"limiter_entries_pruned", pruned,
		)
	}
	return nil
}
