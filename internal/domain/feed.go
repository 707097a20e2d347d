package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// rowSeparator splits feed bodies on LF or CRLF line endings.
var rowSeparator = regexp.MustCompile(`\r?\n`)

// FeedDate is the date a feed was published for. Historical feeds only set Year.
type FeedDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the feed date for the calendar day of t in t's location.
func DateOf(t time.Time) FeedDate {
	y, m, d := t.Date()
	return FeedDate{Year: y, Month: m, Day: d}
}

// YearOf returns a feed date carrying only a year.
func YearOf(year int) FeedDate {
	return FeedDate{Year: year}
}

func (d FeedDate) String() string {
	if d.Month == 0 {
		return fmt.Sprintf("%04d", d.Year)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// FeedTarget names one datamart file: a variant plus the date it covers.
type FeedTarget struct {
	Variant SchemaVariant
	Date    FeedDate
}

// DailyTarget is the current-year feed for a single day.
func DailyTarget(date FeedDate) FeedTarget {
	return FeedTarget{Variant: CurrentReading, Date: date}
}

// HistoricalReadingsTarget is the yearly observations feed.
func HistoricalReadingsTarget(year int) FeedTarget {
	return FeedTarget{Variant: HistoricalReading, Date: YearOf(year)}
}

// HistoricalStationsTarget is the yearly stations feed.
func HistoricalStationsTarget(year int) FeedTarget {
	return FeedTarget{Variant: HistoricalStation, Date: YearOf(year)}
}

// Path returns the location of the feed relative to the datamart root.
func (t FeedTarget) Path() string {
	y := t.Date.Year
	switch t.Variant {
	case HistoricalReading:
		return fmt.Sprintf("%d/%d_BCWS_WX_OBS.csv", y, y)
	case HistoricalStation:
		return fmt.Sprintf("%d/%d_BCWS_WX_STATIONS.csv", y, y)
	default:
		return fmt.Sprintf("%d/%s.csv", y, t.Date)
	}
}

func (t FeedTarget) String() string {
	return t.Variant.String() + ":" + t.Date.String()
}

// Row is one data row of a feed with its 1-based line number in the file.
type Row struct {
	Line   int
	Fields []string
}

// ParseFeed splits a feed body into data rows. The first line is a header and
// is dropped; blank lines, including a trailing one, are dropped too. Fields
// are split on commas without quote handling.
func ParseFeed(body []byte) []Row {
	lines := rowSeparator.Split(string(body), -1)
	if len(lines) <= 1 {
		return nil
	}

	rows := make([]Row, 0, len(lines)-1)
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, Row{Line: i + 2, Fields: strings.Split(line, ",")})
	}
	return rows
}

// FetchResult is the outcome of a feed request that reached the server.
type FetchResult struct {
	Status int
	Body   []byte
}

// Found reports whether the server returned the feed (2xx).
func (r FetchResult) Found() bool {
	return r.Status >= 200 && r.Status < 300
}
