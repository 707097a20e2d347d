package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/config"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

var stationColumns = []string{
	"station_code",
	"station_name",
	"station_acronym",
	"latitude",
	"longitude",
	"elevation",
	"slope",
	"aspect",
	"windspeed_height",
	"adjusted_roughness",
}

var readingColumns = []string{
	"station_code",
	"timestamp_epoch",
	"daily",
	"temperature",
	"relative_humidity",
	"wind_speed",
	"wind_direction",
	"wind_gust",
	"precipitation",
	"solar_radiation",
	"ffmc",
	"isi",
	"fwi",
	"dmc",
	"dc",
	"bui",
	"danger_rating",
}

// upsertStationSQL replaces every attribute of an existing station. A payload
// identical to the stored row leaves it untouched, updated_at included.
var upsertStationSQL = insertInto("stations", stationColumns) +
	" ON CONFLICT (station_code) DO UPDATE SET " +
	excludedAssignments(stationColumns[1:]) +
	", updated_at = CURRENT_TIMESTAMP WHERE " +
	distinctFromExcluded("stations", stationColumns[1:])

func insertReadingQuery(policy string) (string, error) {
	base := insertInto("readings", readingColumns)
	switch policy {
	case config.ConflictOverwrite, "":
		return base + " ON CONFLICT (station_code, timestamp_epoch) DO UPDATE SET " +
			excludedAssignments(readingColumns[2:]), nil
	case config.ConflictIgnore:
		return base + " ON CONFLICT (station_code, timestamp_epoch) DO NOTHING", nil
	case config.ConflictReject:
		return base, nil
	default:
		return "", fmt.Errorf("unknown reading conflict policy %q", policy)
	}
}

// UpsertStation inserts a station or updates every attribute of the existing
// row with the same code. It returns the number of rows written, which is 0
// when the stored row already matches.
func (s *Store) UpsertStation(ctx context.Context, st domain.Station) (int64, error) {
	return s.withTx(ctx, func(tx *sqlx.Tx) (int64, error) {
		res, err := tx.NamedExecContext(ctx, upsertStationSQL, st)
		if err != nil {
			return 0, fmt.Errorf("upsert station %d: %w", st.Code, err)
		}
		return res.RowsAffected()
	})
}

// InsertReading writes a reading according to the configured conflict
// policy. Under "ignore" a duplicate returns 0 rows written.
func (s *Store) InsertReading(ctx context.Context, r domain.Reading) (int64, error) {
	return s.withTx(ctx, func(tx *sqlx.Tx) (int64, error) {
		res, err := tx.NamedExecContext(ctx, s.insertReadingSQL, r)
		if err != nil {
			return 0, fmt.Errorf("insert reading %s: %w", r.Key(), err)
		}
		return res.RowsAffected()
	})
}

func insertInto(table string, columns []string) string {
	named := make([]string, len(columns))
	for i, c := range columns {
		named[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(named, ", "))
}

func excludedAssignments(columns []string) string {
	set := make([]string, len(columns))
	for i, c := range columns {
		set[i] = c + " = excluded." + c
	}
	return strings.Join(set, ", ")
}

func distinctFromExcluded(table string, columns []string) string {
	cmp := make([]string, len(columns))
	for i, c := range columns {
		cmp[i] = table + "." + c + " IS DISTINCT FROM excluded." + c
	}
	return strings.Join(cmp, " OR ")
}
