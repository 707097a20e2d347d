package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/adapter/store"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

const (
	defaultRows    = 2000
	maxRows        = 10000
	defaultWindow  = 24 * time.Hour
	maxWindow      = 31 * 24 * time.Hour
	queryTimeout   = 15 * time.Second
	geojsonFormat  = "geojson"
	geojsonContent = "application/geo+json"
)

// Queries is the read side of the store.
type Queries interface {
	ListStations(ctx context.Context, q store.StationQuery) ([]domain.Station, error)
	CountStations(ctx context.Context, q store.StationQuery) (int, error)
	GetStation(ctx context.Context, code int64) (domain.Station, error)
	ListReadings(ctx context.Context, q store.ReadingQuery) ([]domain.Reading, error)
	CountReadings(ctx context.Context, q store.ReadingQuery) (int, error)
}

type pageResponse[T any] struct {
	Page       int `json:"page"`
	Rows       int `json:"rows"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	Data       []T `json:"data"`
}

func newPageResponse[T any](page store.Page, total int, data []T) pageResponse[T] {
	return pageResponse[T]{
		Page:       page.Number,
		Rows:       len(data),
		Total:      total,
		TotalPages: totalPages(total, page.Size),
		Data:       data,
	}
}

func totalPages(total, size int) int {
	if size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func setTotals(w http.ResponseWriter, page store.Page, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.Header().Set("X-Total-Pages", strconv.Itoa(totalPages(total, page.Size)))
}

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := store.StationQuery{Page: page}
	if raw := r.URL.Query().Get("bbox"); raw != "" {
		bbox, err := parseBBox(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.BBox = &bbox
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	stations, err := s.queries.ListStations(ctx, q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	total, err := s.queries.CountStations(ctx, q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	setTotals(w, page, total)
	if r.URL.Query().Get("format") == geojsonFormat {
		s.writeGeoJSON(w, r, stations)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(page, total, stations))
}

func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.ParseInt(r.PathValue("code"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid station code %q", r.PathValue("code")))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	station, err := s.queries.GetStation(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Errorf("station %d not found", code))
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (s *Server) handleListReadings(dailyOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := parsePage(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start, end, err := parseWindow(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		q := store.ReadingQuery{
			Stations:  parseList(r.URL.Query().Get("stations")),
			StartMs:   start.UnixMilli(),
			EndMs:     end.UnixMilli(),
			DailyOnly: dailyOnly,
			Page:      page,
		}

		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()
		readings, err := s.queries.ListReadings(ctx, q)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		total, err := s.queries.CountReadings(ctx, q)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		setTotals(w, page, total)
		writeJSON(w, http.StatusOK, newPageResponse(page, total, readings))
	}
}

// writeGeoJSON renders stations as a FeatureCollection of points. Stations
// without coordinates are left out.
func (s *Server) writeGeoJSON(w http.ResponseWriter, r *http.Request, stations []domain.Station) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(stations))}
	for _, st := range stations {
		point := st.Point()
		if point == nil {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.FormatInt(st.Code, 10),
			Geometry: point,
			Properties: map[string]any{
				"station_code":       st.Code,
				"station_name":       st.Name,
				"station_acronym":    st.Acronym,
				"elevation":          st.Elevation,
				"slope":              st.Slope,
				"aspect":             st.Aspect,
				"windspeed_height":   st.WindspeedHeight,
				"adjusted_roughness": st.AdjustedRoughness,
			},
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		s.internalError(w, r, fmt.Errorf("encode geojson: %w", err))
		return
	}
	w.Header().Set("Content-Type", geojsonContent)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func parsePage(r *http.Request) (store.Page, error) {
	q := r.URL.Query()
	page := store.Page{Size: defaultRows}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return store.Page{}, fmt.Errorf("invalid page %q", raw)
		}
		page.Number = n
	}
	if raw := q.Get("rows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRows {
			return store.Page{}, fmt.Errorf("invalid rows %q: must be 1..%d", raw, maxRows)
		}
		page.Size = n
	}
	return page, nil
}

// parseBBox reads "xmin,ymin,xmax,ymax" in degrees.
func parseBBox(raw string) (store.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return store.BBox{}, fmt.Errorf("invalid bbox %q: want xmin,ymin,xmax,ymax", raw)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return store.BBox{}, fmt.Errorf("invalid bbox %q: %w", raw, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return store.BBox{}, fmt.Errorf("invalid bbox %q: min exceeds max", raw)
	}
	return store.BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}, nil
}

// parseWindow reads start and end as RFC3339, defaulting to the 24 hours
// before now. Windows longer than 31 days are rejected.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	end := domain.Now()
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q: want RFC3339", raw)
		}
		end = t
	}
	start := end.Add(-defaultWindow)
	if raw := q.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q: want RFC3339", raw)
		}
		start = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end is before start")
	}
	if end.Sub(start) > maxWindow {
		return time.Time{}, time.Time{}, errors.New("time window exceeds 31 days")
	}
	return start, end, nil
}

func parseList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
