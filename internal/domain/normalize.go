package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize maps one raw feed row onto the canonical schema for its variant.
// HistoricalStation rows yield a Station; the reading variants yield a Reading.
//
// Blank rows return ErrEmptyRow. Rows that are too short, carry a bad
// date-hour token, or hold non-numeric observations return a
// MalformedRecordError. Empty observation fields become nil.
func Normalize(fields []string, variant SchemaVariant, feed FeedDate) (Record, error) {
	fields = cleanFields(fields)
	if isEmpty(fields) {
		return nil, ErrEmptyRow
	}

	var (
		rec Record
		err error
	)
	switch variant {
	case CurrentReading:
		rec, err = normalizeReading(fields, currentReadingLayout, feed)
	case HistoricalReading:
		rec, err = normalizeReading(fields, historicalReadingLayout, feed)
	case HistoricalStation:
		rec, err = normalizeStation(fields, historicalStationLayout)
	default:
		return nil, fmt.Errorf("normalize: unknown schema variant %d", int(variant))
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func normalizeReading(fields []string, layout readingLayout, feed FeedDate) (Reading, error) {
	var r Reading

	code, err := field(fields, layout.StationCode, "station_code")
	if err != nil {
		return Reading{}, err
	}
	if code == "" {
		return Reading{}, malformed("station_code", "", "missing")
	}
	r.StationCode = code

	token, err := field(fields, layout.DateTime, "date_time")
	if err != nil {
		return Reading{}, err
	}
	r.TimestampMs, r.Daily, err = DeriveTimestamp(token, layout.mode, feed)
	if err != nil {
		return Reading{}, err
	}

	if err := fillFloats(fields, layout.observations(&r)); err != nil {
		return Reading{}, err
	}
	return r, nil
}

func normalizeStation(fields []string, layout stationLayout) (Station, error) {
	var s Station

	raw, err := field(fields, layout.Code, "station_code")
	if err != nil {
		return Station{}, err
	}
	code, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Station{}, malformed("station_code", raw, "expected integer")
	}
	s.Code = code

	if s.Name, err = field(fields, layout.Name, "station_name"); err != nil {
		return Station{}, err
	}
	if s.Acronym, err = field(fields, layout.Acronym, "station_acronym"); err != nil {
		return Station{}, err
	}

	if err := fillFloats(fields, layout.attributes(&s)); err != nil {
		return Station{}, err
	}
	return s, nil
}

func fillFloats(fields []string, columns []floatColumn) error {
	for _, c := range columns {
		if c.index == absent {
			continue
		}
		raw, err := field(fields, c.index, c.name)
		if err != nil {
			return err
		}
		v, err := parseOptionalFloat(c.name, raw)
		if err != nil {
			return err
		}
		*c.dest = v
	}
	return nil
}

func field(fields []string, index int, name string) (string, error) {
	if index >= len(fields) {
		return "", malformed(name, "", fmt.Sprintf("row has %d columns, need %d", len(fields), index+1))
	}
	return fields[index], nil
}

// parseOptionalFloat returns nil for an empty field. Only plain decimal
// notation is accepted; NaN, Inf, and hex floats are malformed.
func parseOptionalFloat(name, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	if strings.IndexFunc(raw, notDecimal) >= 0 {
		return nil, malformed(name, raw, "expected number")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, malformed(name, raw, "expected number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, malformed(name, raw, "expected finite number")
	}
	return &v, nil
}

func notDecimal(r rune) bool {
	return !(r >= '0' && r <= '9') && !strings.ContainsRune("+-.eE", r)
}

// cleanFields strips the double quotes and stray whitespace (including a
// trailing carriage return) the datamart leaves around values.
func cleanFields(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(strings.ReplaceAll(f, `"`, ""))
	}
	return out
}

func isEmpty(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
