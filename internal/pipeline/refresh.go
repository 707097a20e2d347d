package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

// Refresh re-ingests the daily feeds for today and the days-1 days before it.
// Missing days are logged and do not touch the walker's miss counter.
func (w *Walker) Refresh(ctx context.Context, days int) error {
	logger := w.startRun()
	today := domain.Midnight(domain.Now(), w.cfg.Location)
	logger.Info("refresh started", "from", today.Format(time.DateOnly), "days", days)

	found := 0
	for i := 0; i < days; i++ {
		if ctx.Err() != nil {
			return nil
		}
		result, err := w.ingest(ctx, domain.DailyTarget(domain.DateOf(today.AddDate(0, 0, -i))))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if result == outcomeFound {
			found++
		}
	}

	logger.Info("refresh finished", "days", days, "found", found)
	return nil
}

// Scheduler runs Refresh on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	errs   chan error

	refresh func() error
}

// NewScheduler registers a refresh of the last days daily feeds on spec
// (standard five-field cron, evaluated in the walker's feed time zone).
// Overlapping runs are skipped.
func NewScheduler(ctx context.Context, spec string, w *Walker, days int, logger *slog.Logger) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(w.cfg.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)

	s := &Scheduler{
		cron:    c,
		logger:  logger,
		errs:    make(chan error, 1),
		refresh: func() error { return w.Refresh(ctx, days) },
	}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_CRON %q: %w", spec, err)
	}
	return s, nil
}

// run performs one scheduled refresh. Losing the store is fatal and is
// reported on Err; any other failure waits for the next tick.
func (s *Scheduler) run() {
	err := s.refresh()
	if err == nil {
		return
	}
	s.logger.Error("refresh failed", "error", err)
	if errors.Is(err, domain.ErrPersistenceUnavailable) {
		select {
		case s.errs <- err:
		default:
		}
	}
}

// Err delivers the first refresh failure that should stop the process.
func (s *Scheduler) Err() <-chan error {
	return s.errs
}

// Start begins running scheduled refreshes in the background.
func (s *Scheduler) Start() {
	s.logger.Info("refresh scheduler started", "next", s.Next())
	s.cron.Start()
}

// Next returns the time of the next scheduled refresh.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}

// Stop halts the schedule and waits for a running refresh to return.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
