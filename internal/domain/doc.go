// Package domain models the BC Wildfire Service (BCWS) weather datamart feeds
// and normalizes their rows into canonical readings and stations.
//
// # Data Source
//
// The datamart publishes plain CSV files under one directory per year:
//
//	{base}/{YYYY}/{YYYY}-{MM}-{DD}.csv            current-year daily feed
//	{base}/{YYYY}/{YYYY}_BCWS_WX_OBS.csv          historical hourly observations
//	{base}/{YYYY}/{YYYY}_BCWS_WX_STATIONS.csv     historical station metadata
//
// Every file starts with a header row. Rows end in LF or CRLF, values may be
// wrapped in double quotes, and the last line is often blank. Values never
// contain embedded commas, so rows are split on "," without quote handling.
//
// # Column Layouts
//
// The daily and historical observation files disagree on column order. Each
// layout is a named table in layout.go; a canonical field the layout lacks is
// left nil.
//
//	Daily:       0 station, 1 YYYYMMDDHH, 2 precip, 3 temp, 4 rh, 5 wind speed,
//	             6 wind dir, 7 ffmc, 8 isi, 9 fwi, 10 dmc, 11 dc, 12 bui, 13 danger
//	Historical:  0 station, 1 station name, 2 YYYYMMDDHH, 3 precip, 4 temp, 5 rh,
//	             6 wind speed, 7 wind dir, 8 wind gust, 9 ffmc, 10 isi, 11 fwi,
//	             12 dmc, 13 dc, 14 bui, 15 danger, 16 solar radiation
//	Stations:    0 code, 1 name, 2 acronym, 3 lat, 4 lon, 5 elevation, 6 slope,
//	             7 aspect, 8 windspeed height, 9 adjusted roughness
//
// # Timestamps
//
// The date-hour token is YYYYMMDDHH in local standard time. Daily feeds only
// trust the trailing HH and take the date from the file name; historical
// feeds take MMDDHH from the token and the year from the file name. The wall
// clock is stored as if it were UTC:
//
//	"1990010112" in 1990_BCWS_WX_OBS.csv → 631195200000 (1990-01-01T12:00Z), daily
//
// Hour "12" is the noon observation that feeds the fire weather indices, so
// those readings are flagged daily.
//
// # Empty Values
//
// Empty fields mean "not observed" and are stored as NULL, never as zero.
package domain
