package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

// FeedReport summarizes one ingested feed.
type FeedReport struct {
	Rows      int // data rows after the header
	Persisted int
	Skipped   int // blank rows
	Malformed int
	Failed    int // persistence conflicts
	Duration  time.Duration
}

// ingestFeed normalizes and persists every row of a fetched feed. Per-row
// failures are logged and counted; only an unavailable store stops the feed.
func (w *Walker) ingestFeed(ctx context.Context, target domain.FeedTarget, body []byte) (FeedReport, error) {
	rows := domain.ParseFeed(body)
	report := FeedReport{Rows: len(rows)}
	variant := target.Variant.String()
	var persisted []domain.Reading

	for _, row := range rows {
		rec, err := domain.Normalize(row.Fields, target.Variant, target.Date)
		if errors.Is(err, domain.ErrEmptyRow) {
			report.Skipped++
			w.metrics.Rows.WithLabelValues(variant, "skipped").Inc()
			continue
		}
		if err != nil {
			report.Malformed++
			w.metrics.Rows.WithLabelValues(variant, "malformed").Inc()
			w.logger.Warn("malformed row, skipping", "error", err, "feed", target.String(), "line", row.Line)
			continue
		}

		if err := w.persist(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrPersistenceUnavailable) || ctx.Err() != nil {
				return report, err
			}
			report.Failed++
			w.metrics.Rows.WithLabelValues(variant, "failed").Inc()
			w.logger.Warn("persist failed, skipping row", "error", err, "feed", target.String(), "line", row.Line)
			continue
		}

		report.Persisted++
		w.metrics.Rows.WithLabelValues(variant, "persisted").Inc()
		if r, ok := rec.(domain.Reading); ok {
			persisted = append(persisted, r)
		}
	}

	w.publish(ctx, target, persisted)
	return report, nil
}

func (w *Walker) persist(ctx context.Context, rec domain.Record) error {
	switch r := rec.(type) {
	case domain.Station:
		_, err := w.store.UpsertStation(ctx, r)
		return err
	case domain.Reading:
		_, err := w.store.InsertReading(ctx, r)
		return err
	default:
		return nil
	}
}

func (w *Walker) publish(ctx context.Context, target domain.FeedTarget, readings []domain.Reading) {
	if w.publisher == nil || len(readings) == 0 {
		return
	}
	if err := w.publisher.PublishReadings(ctx, target.Variant, readings); err != nil {
		w.metrics.PublishErrors.Inc()
		w.logger.Warn("publish readings failed", "error", err, "feed", target.String(), "count", len(readings))
	}
}

func (w *Walker) logReport(target domain.FeedTarget, r FeedReport) {
	w.logger.Info("feed ingested",
		"feed", target.String(),
		"rows", r.Rows,
		"persisted", r.Persisted,
		"skipped", r.Skipped,
		"malformed", r.Malformed,
		"failed", r.Failed,
		"duration", r.Duration,
	)
}
