package domain

// absent marks a canonical field that a layout does not carry.
const absent = -1

// readingLayout maps canonical reading fields to raw column indices.
type readingLayout struct {
	mode DecodeMode

	StationCode      int
	DateTime         int
	Precipitation    int
	Temperature      int
	RelativeHumidity int
	WindSpeed        int
	WindDirection    int
	WindGust         int
	FFMC             int
	ISI              int
	FWI              int
	DMC              int
	DC               int
	BUI              int
	DangerRating     int
	SolarRadiation   int
}

// currentReadingLayout is the daily feed: station, YYYYMMDDHH, then the
// observations. Wind gust and solar radiation are not published.
var currentReadingLayout = readingLayout{
	mode:             DecodeHour,
	StationCode:      0,
	DateTime:         1,
	Precipitation:    2,
	Temperature:      3,
	RelativeHumidity: 4,
	WindSpeed:        5,
	WindDirection:    6,
	FFMC:             7,
	ISI:              8,
	FWI:              9,
	DMC:              10,
	DC:               11,
	BUI:              12,
	DangerRating:     13,
	WindGust:         absent,
	SolarRadiation:   absent,
}

// historicalReadingLayout is the yearly OBS feed, which repeats the station
// name after the code and appends wind gust and solar radiation.
var historicalReadingLayout = readingLayout{
	mode:             DecodeMonthDayHour,
	StationCode:      0,
	DateTime:         2,
	Precipitation:    3,
	Temperature:      4,
	RelativeHumidity: 5,
	WindSpeed:        6,
	WindDirection:    7,
	WindGust:         8,
	FFMC:             9,
	ISI:              10,
	FWI:              11,
	DMC:              12,
	DC:               13,
	BUI:              14,
	DangerRating:     15,
	SolarRadiation:   16,
}

type floatColumn struct {
	name  string
	index int
	dest  **float64
}

func (l readingLayout) observations(r *Reading) []floatColumn {
	return []floatColumn{
		{"precipitation", l.Precipitation, &r.Precipitation},
		{"temperature", l.Temperature, &r.Temperature},
		{"relative_humidity", l.RelativeHumidity, &r.RelativeHumidity},
		{"wind_speed", l.WindSpeed, &r.WindSpeed},
		{"wind_direction", l.WindDirection, &r.WindDirection},
		{"wind_gust", l.WindGust, &r.WindGust},
		{"ffmc", l.FFMC, &r.FFMC},
		{"isi", l.ISI, &r.ISI},
		{"fwi", l.FWI, &r.FWI},
		{"dmc", l.DMC, &r.DMC},
		{"dc", l.DC, &r.DC},
		{"bui", l.BUI, &r.BUI},
		{"danger_rating", l.DangerRating, &r.DangerRating},
		{"solar_radiation", l.SolarRadiation, &r.SolarRadiation},
	}
}

// stationLayout maps station attributes to raw column indices.
type stationLayout struct {
	Code              int
	Name              int
	Acronym           int
	Latitude          int
	Longitude         int
	Elevation         int
	Slope             int
	Aspect            int
	WindspeedHeight   int
	AdjustedRoughness int
}

var historicalStationLayout = stationLayout{
	Code:              0,
	Name:              1,
	Acronym:           2,
	Latitude:          3,
	Longitude:         4,
	Elevation:         5,
	Slope:             6,
	Aspect:            7,
	WindspeedHeight:   8,
	AdjustedRoughness: 9,
}

func (l stationLayout) attributes(s *Station) []floatColumn {
	return []floatColumn{
		{"latitude", l.Latitude, &s.Latitude},
		{"longitude", l.Longitude, &s.Longitude},
		{"elevation", l.Elevation, &s.Elevation},
		{"slope", l.Slope, &s.Slope},
		{"aspect", l.Aspect, &s.Aspect},
		{"windspeed_height", l.WindspeedHeight, &s.WindspeedHeight},
		{"adjusted_roughness", l.AdjustedRoughness, &s.AdjustedRoughness},
	}
}
