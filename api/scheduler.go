/*
scheduler.go - Automated month-end snapshot scheduler

PURPOSE:
  Captures every account's balance on the last day of each month, so the
  forecast engine has month-end balances to recalibrate against and to show
  next to projected months.

DESIGN:
  - robfig/cron drives the job from a standard 5-field spec (default: daily
    at 23:55)
  - Each run checks whether today is the last day of the month and skips
    otherwise, so the spec never has to express "last day"
  - Snapshots upsert on (account, period end), so a rerun on the same day
    overwrites rather than duplicates

CONFIGURATION:
  - Spec: cron expression (config: scheduler.spec)
  - Enabled: Whether scheduler is active (config: scheduler.enabled)

USAGE:
  scheduler := NewSnapshotScheduler(store, "55 23 * * *", log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: MonthEnd endpoint (manual snapshot)
*/
package api

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/cashflow-forecast/forecast"
)

// MonthEndSnapshotter captures all account balances at a period end.
type MonthEndSnapshotter interface {
	SnapshotMonthEnd(ctx context.Context, periodEnd time.Time) (int, error)
}

// SnapshotScheduler takes month-end balance snapshots.
type SnapshotScheduler struct {
	Store   MonthEndSnapshotter
	Spec    string
	Enabled bool
	Log     logrus.FieldLogger

	// Now is the scheduler's clock.
	Now func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
}

// NewSnapshotScheduler creates a new scheduler.
func NewSnapshotScheduler(store MonthEndSnapshotter, spec string, log logrus.FieldLogger) *SnapshotScheduler {
	return &SnapshotScheduler{
		Store:   store,
		Spec:    spec,
		Enabled: true,
		Log:     log,
		Now:     time.Now,
	}
}

func (s *SnapshotScheduler) logger() logrus.FieldLogger {
	if s.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return s.Log
}

// Start begins the scheduler.
func (s *SnapshotScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger().Info("snapshot scheduler disabled, not starting")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.Spec, func() { s.RunNow(context.Background()) }); err != nil {
		return fmt.Errorf("invalid scheduler spec %q: %w", s.Spec, err)
	}
	c.Start()
	s.cron = c

	s.logger().WithField("spec", s.Spec).Info("snapshot scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
		s.logger().Info("snapshot scheduler stopped")
	}
}

// RunNow snapshots all accounts if today is the last day of its month.
// Returns whether a snapshot was taken.
func (s *SnapshotScheduler) RunNow(ctx context.Context) (bool, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now()
	today := forecast.Date(t.Year(), t.Month(), t.Day())

	if !today.Equal(forecast.EndOfMonth(today)) {
		return false, nil
	}

	n, err := s.Store.SnapshotMonthEnd(ctx, today)
	if err != nil {
		s.logger().WithError(err).Error("month-end snapshot failed")
		return false, err
	}
	s.logger().WithFields(logrus.Fields{"period_end": today.Format(dateLayout), "accounts": n}).
		Info("month-end snapshot taken")
	return true, nil
}

// NextRun returns when the job fires next, or the zero time if stopped.
func (s *SnapshotScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
