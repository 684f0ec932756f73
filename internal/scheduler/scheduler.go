// Package scheduler provides cron-based background jobs for the outreach
// workflow engine, in particular the inactivity sweep that escalates
// conversations whose influencer has gone quiet.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// DefaultSweepSchedule runs the inactivity sweep at the top of every hour.
const DefaultSweepSchedule = "0 * * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// TimeoutDriver is the slice of the workflow driver the sweeper needs.
type TimeoutDriver interface {
	StaleSince(ctx context.Context, cutoff time.Time) ([]*models.ConversationState, error)
	ForceTimeout(ctx context.Context, conversationID string) error
}

// Sweeper escalates conversations that have been awaiting a reply longer than
// the inactivity timeout.
type Sweeper struct {
	driver  TimeoutDriver
	timeout time.Duration
}

// NewSweeper creates an inactivity sweeper with the given timeout threshold.
func NewSweeper(driver TimeoutDriver, timeout time.Duration) *Sweeper {
	return &Sweeper{driver: driver, timeout: timeout}
}

// Register adds the sweep job to the scheduler under the given cron
// expression.
func (sw *Sweeper) Register(s *Scheduler, expr string) error {
	return s.AddJob(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		sw.Sweep(ctx)
	})
}

// Sweep runs one pass: every conversation inactive past the threshold is
// force-timed-out, which suspends it for human review.
func (sw *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-sw.timeout)
	stale, err := sw.driver.StaleSince(ctx, cutoff)
	if err != nil {
		slog.Error("Sweeper.Sweep: listing stale conversations failed", "error", err)
		return
	}
	if len(stale) == 0 {
		slog.Debug("Sweeper.Sweep: no stale conversations")
		return
	}

	slog.Info("Sweeper.Sweep: escalating stale conversations", "count", len(stale), "timeout", sw.timeout)
	for _, state := range stale {
		if err := sw.driver.ForceTimeout(ctx, state.ID); err != nil {
			slog.Error("Sweeper.Sweep: timeout escalation failed", "error", err, "conversationID", state.ID)
		}
	}
}
