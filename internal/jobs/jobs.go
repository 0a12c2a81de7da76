// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"

	"gym-manager/internal/models"
	"gym-manager/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionCleaner deletes expired login sessions.
type SessionCleaner interface {
	CleanExpiredSessions() (int64, error)
}

// ExpiryLister finds subscriptions that are about to lapse.
type ExpiryLister interface {
	ExpiringWithin(days int) ([]models.User, error)
}

// Config holds the cron specs.
type Config struct {
	SessionCleanup string
	ExpiryReport   string
	ExpiryDays     int
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionCleaner
	expiring ExpiryLister
	days     int
	logger   *zap.Logger
}

// New registers the jobs described by cfg.
func New(cfg Config, sessions SessionCleaner, expiring ExpiryLister, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		expiring: expiring,
		days:     cfg.ExpiryDays,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(cfg.SessionCleanup, s.CleanSessions); err != nil {
		return nil, fmt.Errorf("schedule session cleanup %q: %w", cfg.SessionCleanup, err)
	}
	if _, err := s.cron.AddFunc(cfg.ExpiryReport, s.ReportExpiring); err != nil {
		return nil, fmt.Errorf("schedule expiry report %q: %w", cfg.ExpiryReport, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("background jobs started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("background jobs did not finish before shutdown")
	}
}

// CleanSessions removes expired sessions.
func (s *Scheduler) CleanSessions() {
	n, err := s.sessions.CleanExpiredSessions()
	if err != nil {
		s.logger.Error("session cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("expired sessions removed", zap.Int64("count", n))
}

// ReportExpiring logs every subscription that ends within the configured window.
func (s *Scheduler) ReportExpiring() {
	users, err := s.expiring.ExpiringWithin(s.days)
	if err != nil {
		s.logger.Error("expiry report failed", zap.Error(err))
		return
	}
	for _, u := range users {
		s.logger.Warn("subscription expiring soon",
			zap.String("username", u.Username),
			zap.String("expiry", u.SubscriptionExpiry.Format(storage.DateLayout)),
		)
	}
	s.logger.Info("expiry report complete", zap.Int("expiring", len(users)), zap.Int("within_days", s.days))
}
