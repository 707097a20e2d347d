package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// BBox is a WGS-84 bounding box in degrees.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Page selects a window of an ordered result set.
type Page struct {
	Number int // zero-based
	Size   int
}

func (p Page) offset() int { return p.Number * p.Size }

// StationQuery filters ListStations.
type StationQuery struct {
	BBox *BBox
	Page Page
}

// ReadingQuery filters ListReadings. StartMs and EndMs are inclusive.
type ReadingQuery struct {
	Stations  []string
	StartMs   int64
	EndMs     int64
	DailyOnly bool
	Page      Page
}

var stationSelect = "SELECT " + strings.Join(stationColumns, ", ") + " FROM stations"

var readingSelect = "SELECT " + strings.Join(readingColumns, ", ") + " FROM readings"

func stationFilter(q StationQuery) (string, []any) {
	if q.BBox == nil {
		return "", nil
	}
	return " WHERE longitude BETWEEN ? AND ? AND latitude BETWEEN ? AND ?",
		[]any{q.BBox.MinLon, q.BBox.MaxLon, q.BBox.MinLat, q.BBox.MaxLat}
}

// ListStations returns stations ordered by code.
func (s *Store) ListStations(ctx context.Context, q StationQuery) ([]domain.Station, error) {
	where, args := stationFilter(q)
	query := stationSelect + where + " ORDER BY station_code LIMIT ? OFFSET ?"
	args = append(args, q.Page.Size, q.Page.offset())

	stations := []domain.Station{}
	if err := s.db.SelectContext(ctx, &stations, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	return stations, nil
}

// CountStations returns how many stations match q, ignoring its page.
func (s *Store) CountStations(ctx context.Context, q StationQuery) (int, error) {
	where, args := stationFilter(q)
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind("SELECT COUNT(*) FROM stations"+where), args...); err != nil {
		return 0, fmt.Errorf("count stations: %w", err)
	}
	return n, nil
}

// GetStation returns one station by code, or ErrNotFound.
func (s *Store) GetStation(ctx context.Context, code int64) (domain.Station, error) {
	var st domain.Station
	err := s.db.GetContext(ctx, &st, s.db.Rebind(stationSelect+" WHERE station_code = ?"), code)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Station{}, ErrNotFound
	}
	if err != nil {
		return domain.Station{}, fmt.Errorf("get station %d: %w", code, err)
	}
	return st, nil
}

func readingFilter(q ReadingQuery) (string, []any) {
	where := " WHERE timestamp_epoch BETWEEN ? AND ?"
	args := []any{q.StartMs, q.EndMs}
	if q.DailyOnly {
		where += " AND daily = ?"
		args = append(args, true)
	}
	if len(q.Stations) > 0 {
		where += " AND station_code IN (?)"
		args = append(args, q.Stations)
	}
	return where, args
}

// ListReadings returns readings in [StartMs, EndMs] ordered by station and time.
func (s *Store) ListReadings(ctx context.Context, q ReadingQuery) ([]domain.Reading, error) {
	where, args := readingFilter(q)
	query := readingSelect + where + " ORDER BY station_code, timestamp_epoch LIMIT ? OFFSET ?"
	args = append(args, q.Page.Size, q.Page.offset())

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand reading query: %w", err)
	}

	readings := []domain.Reading{}
	if err := s.db.SelectContext(ctx, &readings, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return readings, nil
}

// CountReadings returns how many readings match q, ignoring its page.
func (s *Store) CountReadings(ctx context.Context, q ReadingQuery) (int, error) {
	where, args := readingFilter(q)
	query, args, err := sqlx.In("SELECT COUNT(*) FROM readings"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("expand reading count: %w", err)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}
