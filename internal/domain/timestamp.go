package domain

import (
	"time"
)

// DecodeMode selects which parts of a date-hour token carry information.
type DecodeMode int

const (
	// DecodeHour reads only the trailing HH; year, month, and day come from the feed date.
	DecodeHour DecodeMode = iota
	// DecodeMonthDayHour reads the trailing MMDDHH; the year comes from the feed date.
	DecodeMonthDayHour
)

// dailyHourToken is the hour at which the datamart publishes the daily (noon) observation.
const dailyHourToken = "12"

// DeriveTimestamp converts a raw date-hour token into epoch milliseconds and
// the daily flag. The wall-clock time is interpreted as UTC with no offset.
//
// Tokens shorter than the mode requires, tokens with non-digit characters,
// and out-of-range hour, month, or day values return a MalformedRecordError.
func DeriveTimestamp(token string, mode DecodeMode, feed FeedDate) (int64, bool, error) {
	if !allDigits(token) {
		return 0, false, malformed("date_time", token, "expected digits")
	}

	year, month, day := feed.Year, int(feed.Month), feed.Day
	switch mode {
	case DecodeHour:
		if len(token) < 2 {
			return 0, false, malformed("date_time", token, "too short for hour")
		}
	case DecodeMonthDayHour:
		if len(token) < 6 {
			return 0, false, malformed("date_time", token, "too short for month, day and hour")
		}
		n := len(token)
		month = atoi(token[n-6 : n-4])
		day = atoi(token[n-4 : n-2])
	default:
		return 0, false, malformed("date_time", token, "unknown decode mode")
	}

	hourToken := token[len(token)-2:]
	hour := atoi(hourToken)
	if hour > 23 {
		return 0, false, malformed("date_time", token, "hour out of range")
	}
	if month < 1 || month > 12 {
		return 0, false, malformed("date_time", token, "month out of range")
	}

	t := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return 0, false, malformed("date_time", token, "day out of range")
	}

	return t.UnixMilli(), hourToken == dailyHourToken, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// atoi parses a string already known to contain only ASCII digits.
func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
