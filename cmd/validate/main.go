// Command validate runs the feed parser and normalizer over a local datamart
// CSV and reports how each row would be ingested. Nothing is persisted.
//
// Usage:
//
//	go run ./cmd/validate -file 2024-07-19.csv
//	go run ./cmd/validate -file 1990_BCWS_WX_OBS.csv
//	go run ./cmd/validate -file obs.csv -variant historical -year 1990
//
// The variant and feed date are inferred from datamart file names when the
// flags are omitted. Exit status is 1 when any row is malformed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

// maxListed caps the malformed rows printed in the report.
const maxListed = 20

var (
	dailyName    = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.csv$`)
	obsName      = regexp.MustCompile(`^(\d{4})_BCWS_WX_OBS\.csv$`)
	stationsName = regexp.MustCompile(`^(\d{4})_BCWS_WX_STATIONS\.csv$`)
)

func main() {
	file := flag.String("file", "", "path to a datamart CSV feed")
	variant := flag.String("variant", "", "current, historical, or stations (inferred from the file name when empty)")
	date := flag.String("date", "", "feed date YYYY-MM-DD for current feeds")
	year := flag.Int("year", 0, "feed year for historical feeds")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	target, err := resolveTarget(filepath.Base(*file), *variant, *date, *year)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	body, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	r := validate(body, target)
	r.print(*file, target)
	if len(r.malformed) > 0 {
		os.Exit(1)
	}
}

// resolveTarget combines explicit flags with what the file name implies.
// Flags win.
func resolveTarget(name, variant, date string, year int) (domain.FeedTarget, error) {
	var inferred domain.FeedTarget
	var ok bool
	if m := dailyName.FindStringSubmatch(name); m != nil {
		if t, err := time.Parse(time.DateOnly, m[1]); err == nil {
			inferred, ok = domain.DailyTarget(domain.DateOf(t)), true
		}
	} else if m := obsName.FindStringSubmatch(name); m != nil {
		y, _ := strconv.Atoi(m[1])
		inferred, ok = domain.HistoricalReadingsTarget(y), true
	} else if m := stationsName.FindStringSubmatch(name); m != nil {
		y, _ := strconv.Atoi(m[1])
		inferred, ok = domain.HistoricalStationsTarget(y), true
	}

	if variant == "" {
		if !ok {
			return domain.FeedTarget{}, fmt.Errorf("cannot infer variant from %q: pass -variant", name)
		}
		variant = variantFlag(inferred.Variant)
	}

	switch variant {
	case "current":
		if date == "" {
			if !ok || inferred.Variant != domain.CurrentReading {
				return domain.FeedTarget{}, errors.New("current feeds need -date YYYY-MM-DD")
			}
			return inferred, nil
		}
		t, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return domain.FeedTarget{}, fmt.Errorf("invalid -date %q: want YYYY-MM-DD", date)
		}
		return domain.DailyTarget(domain.DateOf(t)), nil
	case "historical", "stations":
		if year == 0 {
			if !ok || inferred.Variant == domain.CurrentReading {
				return domain.FeedTarget{}, fmt.Errorf("%s feeds need -year", variant)
			}
			year = inferred.Date.Year
		}
		if variant == "historical" {
			return domain.HistoricalReadingsTarget(year), nil
		}
		return domain.HistoricalStationsTarget(year), nil
	default:
		return domain.FeedTarget{}, fmt.Errorf("invalid -variant %q: want current, historical, or stations", variant)
	}
}

func variantFlag(v domain.SchemaVariant) string {
	switch v {
	case domain.HistoricalReading:
		return "historical"
	case domain.HistoricalStation:
		return "stations"
	default:
		return "current"
	}
}

type malformedRow struct {
	line int
	err  error
}

type report struct {
	rows      int
	valid     int
	skipped   int
	daily     int
	stations  map[string]struct{}
	minTs     int64
	maxTs     int64
	malformed []malformedRow
}

func validate(body []byte, target domain.FeedTarget) *report {
	r := &report{stations: map[string]struct{}{}}
	for _, row := range domain.ParseFeed(body) {
		r.rows++
		rec, err := domain.Normalize(row.Fields, target.Variant, target.Date)
		if errors.Is(err, domain.ErrEmptyRow) {
			r.skipped++
			continue
		}
		if err != nil {
			r.malformed = append(r.malformed, malformedRow{line: row.Line, err: err})
			continue
		}
		r.valid++
		switch v := rec.(type) {
		case domain.Reading:
			r.stations[v.StationCode] = struct{}{}
			if v.Daily {
				r.daily++
			}
			if r.minTs == 0 || v.TimestampMs < r.minTs {
				r.minTs = v.TimestampMs
			}
			if v.TimestampMs > r.maxTs {
				r.maxTs = v.TimestampMs
			}
		case domain.Station:
			r.stations[strconv.FormatInt(v.Code, 10)] = struct{}{}
		}
	}
	return r
}

func (r *report) print(file string, target domain.FeedTarget) {
	fmt.Printf("=== %s (%s) ===\n\n", file, target)
	fmt.Printf("  %-12s %d\n", "rows", r.rows)
	fmt.Printf("  %-12s %d\n", "valid", r.valid)
	fmt.Printf("  %-12s %d\n", "blank", r.skipped)
	fmt.Printf("  %-12s %d\n", "malformed", len(r.malformed))
	fmt.Printf("  %-12s %d\n", "stations", len(r.stations))
	if target.Variant != domain.HistoricalStation && r.maxTs > 0 {
		fmt.Printf("  %-12s %d\n", "daily", r.daily)
		fmt.Printf("  %-12s %s .. %s\n", "span",
			time.UnixMilli(r.minTs).UTC().Format(time.RFC3339),
			time.UnixMilli(r.maxTs).UTC().Format(time.RFC3339))
	}

	if len(r.malformed) == 0 {
		fmt.Println("\nAll rows valid.")
		return
	}
	fmt.Printf("\n--- malformed rows ---\n")
	for i, m := range r.malformed {
		if i == maxListed {
			fmt.Printf("  ... and %d more\n", len(r.malformed)-maxListed)
			break
		}
		fmt.Printf("  line %d: %v\n", m.line, m.err)
	}
	fmt.Println("\nValidation FAILED.")
}
