package domain

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// SchemaVariant identifies which raw column layout a feed row follows.
type SchemaVariant int

const (
	// CurrentReading is a row of a current-year daily feed (YYYY-MM-DD.csv).
	CurrentReading SchemaVariant = iota
	// HistoricalReading is a row of a historical yearly observations feed (YYYY_BCWS_WX_OBS.csv).
	HistoricalReading
	// HistoricalStation is a row of a historical yearly stations feed (YYYY_BCWS_WX_STATIONS.csv).
	HistoricalStation
)

func (v SchemaVariant) String() string {
	switch v {
	case CurrentReading:
		return "current_reading"
	case HistoricalReading:
		return "historical_reading"
	case HistoricalStation:
		return "historical_station"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Record is the output of normalization: either a Reading or a Station.
type Record interface {
	record()
}

// Reading is one hourly (or daily, when the hour token is "12") weather
// observation at a station. Nil fields were absent from the source row or
// from its layout.
type Reading struct {
	StationCode string `json:"station_code" db:"station_code"`
	TimestampMs int64  `json:"timestamp_ms" db:"timestamp_epoch"`
	Daily       bool   `json:"daily" db:"daily"`

	Temperature      *float64 `json:"temperature,omitempty" db:"temperature"`
	RelativeHumidity *float64 `json:"relative_humidity,omitempty" db:"relative_humidity"`
	WindSpeed        *float64 `json:"wind_speed,omitempty" db:"wind_speed"`
	WindDirection    *float64 `json:"wind_direction,omitempty" db:"wind_direction"`
	WindGust         *float64 `json:"wind_gust,omitempty" db:"wind_gust"`
	Precipitation    *float64 `json:"precipitation,omitempty" db:"precipitation"`
	SolarRadiation   *float64 `json:"solar_radiation,omitempty" db:"solar_radiation"`
	FFMC             *float64 `json:"ffmc,omitempty" db:"ffmc"`
	ISI              *float64 `json:"isi,omitempty" db:"isi"`
	FWI              *float64 `json:"fwi,omitempty" db:"fwi"`
	DMC              *float64 `json:"dmc,omitempty" db:"dmc"`
	DC               *float64 `json:"dc,omitempty" db:"dc"`
	BUI              *float64 `json:"bui,omitempty" db:"bui"`
	DangerRating     *float64 `json:"danger_rating,omitempty" db:"danger_rating"`
}

// Key returns the natural identity of a reading.
func (r Reading) Key() string {
	return fmt.Sprintf("%s|%d", r.StationCode, r.TimestampMs)
}

// Station is the metadata of a weather station, keyed by its numeric code.
type Station struct {
	Code    int64  `json:"station_code" db:"station_code"`
	Name    string `json:"station_name" db:"station_name"`
	Acronym string `json:"station_acronym" db:"station_acronym"`

	Latitude          *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude         *float64 `json:"longitude,omitempty" db:"longitude"`
	Elevation         *float64 `json:"elevation,omitempty" db:"elevation"`
	Slope             *float64 `json:"slope,omitempty" db:"slope"`
	Aspect            *float64 `json:"aspect,omitempty" db:"aspect"`
	WindspeedHeight   *float64 `json:"windspeed_height,omitempty" db:"windspeed_height"`
	AdjustedRoughness *float64 `json:"adjusted_roughness,omitempty" db:"adjusted_roughness"`

	// Geometry is never populated by ingestion; the column is stored NULL.
	Geometry geom.T `json:"-" db:"-"`
}

// Point builds a WGS-84 point from the station coordinates. It returns nil
// when either coordinate is missing.
func (s Station) Point() *geom.Point {
	if s.Latitude == nil || s.Longitude == nil {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{*s.Longitude, *s.Latitude}).SetSRID(4326)
}

func (Reading) record() {}
func (Station) record() {}
