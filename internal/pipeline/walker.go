package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/observability"
)

// Fetcher retrieves one datamart feed. A non-2xx response is a FetchResult,
// not an error; errors are transport failures.
type Fetcher interface {
	Fetch(ctx context.Context, target domain.FeedTarget) (domain.FetchResult, error)
}

// Store persists normalized records. Errors wrap domain.ErrPersistenceConflict
// or domain.ErrPersistenceUnavailable.
type Store interface {
	UpsertStation(ctx context.Context, s domain.Station) (int64, error)
	InsertReading(ctx context.Context, r domain.Reading) (int64, error)
}

// Publisher forwards persisted readings to a downstream sink.
type Publisher interface {
	PublishReadings(ctx context.Context, variant domain.SchemaVariant, readings []domain.Reading) error
}

// State is the walker's position in its lifecycle.
type State int

const (
	StateBackfill State = iota
	StateCurrentYear
	StateDone
)

func (s State) String() string {
	switch s {
	case StateBackfill:
		return "backfill"
	case StateCurrentYear:
		return "current_year"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WalkerConfig controls the cursor walk.
type WalkerConfig struct {
	BackfillEnabled bool
	StartYear       int
	MissThreshold   int
	DailyFloor      time.Time // zero disables the floor
	Location        *time.Location
	MaxRetries      int
	RetryBackoff    time.Duration // zero uses 200ms
}

// Walker drives ingestion: it walks historical years forward, then current-year
// days backward from yesterday until too many consecutive days are missing.
type Walker struct {
	fetcher   Fetcher
	store     Store
	publisher Publisher
	metrics   *observability.Metrics
	cfg       WalkerConfig

	baseLogger *slog.Logger
	logger     *slog.Logger // baseLogger plus the active run_id

	state       State
	year        int
	currentYear int
	date        time.Time
	misses      int
}

// NewWalker derives the initial cursor from the package clock: backfill starts
// at cfg.StartYear when enabled and earlier than the current year, and the
// daily walk starts at yesterday in cfg.Location. publisher may be nil.
func NewWalker(f Fetcher, s Store, p Publisher, cfg WalkerConfig, logger *slog.Logger, metrics *observability.Metrics) *Walker {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}

	today := domain.Midnight(domain.Now(), cfg.Location)
	w := &Walker{
		fetcher:     f,
		store:       s,
		publisher:   p,
		metrics:     metrics,
		baseLogger:  logger,
		logger:      logger,
		cfg:         cfg,
		state:       StateCurrentYear,
		currentYear: today.Year(),
		date:        today.AddDate(0, 0, -1),
	}
	if cfg.BackfillEnabled && cfg.StartYear < w.currentYear {
		w.state = StateBackfill
		w.year = cfg.StartYear
	}
	w.reportState()
	return w
}

// State returns the current state.
func (w *Walker) State() State { return w.state }

// Misses returns the consecutive not-found count of the daily walk.
func (w *Walker) Misses() int { return w.misses }

// Year returns the next historical year to fetch.
func (w *Walker) Year() int { return w.year }

// Date returns the next daily feed date to fetch.
func (w *Walker) Date() time.Time { return w.date }

// Run steps the walker until it reaches StateDone or ctx is cancelled. It
// returns an error only when the store becomes unavailable.
func (w *Walker) Run(ctx context.Context) error {
	logger := w.startRun()
	logger.Info("walker started",
		"state", w.state.String(),
		"start_year", w.year,
		"start_date", w.date.Format(time.DateOnly),
		"miss_threshold", w.cfg.MissThreshold,
	)
	w.metrics.PipelineRunning.Set(1)
	defer w.metrics.PipelineRunning.Set(0)

	for w.state != StateDone {
		if ctx.Err() != nil {
			logger.Info("walker stopping", "reason", ctx.Err(), "state", w.state.String())
			return nil
		}
		if err := w.Step(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info("walker stopping", "reason", ctx.Err(), "state", w.state.String())
				return nil
			}
			logger.Error("walker aborted", "error", err, "state", w.state.String())
			return err
		}
	}

	logger.Info("walker finished", "last_date", w.date.AddDate(0, 0, 1).Format(time.DateOnly))
	return nil
}

// startRun tags subsequent logs with a fresh run_id.
func (w *Walker) startRun() *slog.Logger {
	w.logger = w.baseLogger.With("run_id", uuid.NewString())
	return w.logger
}

// Step performs one transition: a whole historical year in StateBackfill,
// one day in StateCurrentYear, nothing in StateDone.
func (w *Walker) Step(ctx context.Context) error {
	var err error
	switch w.state {
	case StateBackfill:
		err = w.stepBackfill(ctx)
	case StateCurrentYear:
		err = w.stepCurrentYear(ctx)
	case StateDone:
		return nil
	}
	w.reportState()
	return err
}

func (w *Walker) stepBackfill(ctx context.Context) error {
	year := w.year
	for _, target := range []domain.FeedTarget{
		domain.HistoricalStationsTarget(year),
		domain.HistoricalReadingsTarget(year),
	} {
		if _, err := w.ingest(ctx, target); err != nil {
			return err
		}
	}

	w.year++
	if w.year >= w.currentYear {
		w.logger.Info("backfill complete", "last_year", year)
		w.state = StateCurrentYear
	}
	return nil
}

func (w *Walker) stepCurrentYear(ctx context.Context) error {
	target := domain.DailyTarget(domain.DateOf(w.date))

	result, err := w.ingest(ctx, target)
	if err != nil {
		return err
	}

	switch result {
	case outcomeFound:
		w.misses = 0
	case outcomeNotFound:
		w.misses++
		if w.misses > w.cfg.MissThreshold {
			w.logger.Info("miss threshold exceeded", "misses", w.misses, "date", target.Date.String())
			w.state = StateDone
		}
	case outcomeUnreachable:
		// Neither a hit nor a miss.
	}

	w.date = w.date.AddDate(0, 0, -1)
	if w.state != StateDone && !w.cfg.DailyFloor.IsZero() && w.date.Before(w.cfg.DailyFloor) {
		w.logger.Info("daily floor reached", "floor", w.cfg.DailyFloor.Format(time.DateOnly))
		w.state = StateDone
	}
	return nil
}

func (w *Walker) reportState() {
	w.metrics.WalkerState.Set(float64(w.state))
	w.metrics.ConsecutiveMisses.Set(float64(w.misses))
	if w.state == StateBackfill {
		w.metrics.CursorYear.Set(float64(w.year))
	} else {
		w.metrics.CursorYear.Set(float64(w.date.Year()))
	}
}

type outcome int

const (
	outcomeFound outcome = iota
	outcomeNotFound
	outcomeUnreachable
)

func (o outcome) String() string {
	switch o {
	case outcomeFound:
		return "found"
	case outcomeNotFound:
		return "not_found"
	default:
		return "unreachable"
	}
}

// ingest fetches one target and persists its rows. The returned error is
// fatal: the store is unavailable or ctx was cancelled.
func (w *Walker) ingest(ctx context.Context, target domain.FeedTarget) (outcome, error) {
	start := time.Now()
	variant := target.Variant.String()

	res, err := w.fetch(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeUnreachable, ctx.Err()
		}
		w.metrics.FeedsFetched.WithLabelValues(variant, outcomeUnreachable.String()).Inc()
		w.logger.Warn("feed unreachable, skipping", "error", err, "feed", target.String())
		return outcomeUnreachable, nil
	}
	if !res.Found() {
		w.metrics.FeedsFetched.WithLabelValues(variant, outcomeNotFound.String()).Inc()
		w.logger.Info("feed not found", "feed", target.String(), "status", res.Status, "misses", w.misses)
		return outcomeNotFound, nil
	}
	w.metrics.FeedsFetched.WithLabelValues(variant, outcomeFound.String()).Inc()

	report, err := w.ingestFeed(ctx, target, res.Body)
	report.Duration = time.Since(start)
	w.metrics.FeedDuration.WithLabelValues(variant).Observe(report.Duration.Seconds())
	w.logReport(target, report)
	return outcomeFound, err
}

// fetch retries transport failures with exponential backoff.
func (w *Walker) fetch(ctx context.Context, target domain.FeedTarget) (domain.FetchResult, error) {
	backoff := w.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		res, err := w.fetcher.Fetch(ctx, target)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || attempt >= w.cfg.MaxRetries {
			return domain.FetchResult{}, err
		}
		w.logger.Warn("fetch failed, retrying", "error", err, "feed", target.String(), "attempt", attempt+1, "backoff", backoff)
		if !sleepWithContext(ctx, backoff) {
			return domain.FetchResult{}, errors.Join(err, ctx.Err())
		}
		backoff = nextBackoff(backoff, maxRetryBackoff)
	}
}
