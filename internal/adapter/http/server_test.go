package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/wfwx-datamart-etl/internal/adapter/http"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/adapter/store"
	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockQueries struct {
	stations []domain.Station
	readings []domain.Reading
	total    int
	err      error

	stationQuery store.StationQuery
	readingQuery store.ReadingQuery
}

func (m *mockQueries) ListStations(_ context.Context, q store.StationQuery) ([]domain.Station, error) {
	m.stationQuery = q
	return m.stations, m.err
}

func (m *mockQueries) CountStations(_ context.Context, _ store.StationQuery) (int, error) {
	return m.total, m.err
}

func (m *mockQueries) GetStation(_ context.Context, code int64) (domain.Station, error) {
	if m.err != nil {
		return domain.Station{}, m.err
	}
	for _, s := range m.stations {
		if s.Code == code {
			return s, nil
		}
	}
	return domain.Station{}, store.ErrNotFound
}

func (m *mockQueries) ListReadings(_ context.Context, q store.ReadingQuery) ([]domain.Reading, error) {
	m.readingQuery = q
	return m.readings, m.err
}

func (m *mockQueries) CountReadings(_ context.Context, _ store.ReadingQuery) (int, error) {
	return m.total, m.err
}

func ptr(f float64) *float64 { return &f }

func testStations() []domain.Station {
	return []domain.Station{
		{Code: 11, Name: "AFTON", Acronym: "AFT", Latitude: ptr(50.6733), Longitude: ptr(-120.4816), Elevation: ptr(780)},
		{Code: 12, Name: "NO COORDS", Acronym: "NOC"},
	}
}

func newTestServer(readyErr error, q *mockQueries) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, q, logger)
}

func get(srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil, &mockQueries{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil, &mockQueries{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(errors.New("database unreachable"), &mockQueries{}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, &mockQueries{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListStations(t *testing.T) {
	q := &mockQueries{stations: testStations(), total: 52}
	rec := get(newTestServer(nil, q), "/stations?page=1&rows=50&bbox=-125,48,-114,60")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.Page{Number: 1, Size: 50}, q.stationQuery.Page)
	require.NotNil(t, q.stationQuery.BBox)
	assert.Equal(t, store.BBox{MinLon: -125, MinLat: 48, MaxLon: -114, MaxLat: 60}, *q.stationQuery.BBox)

	var body struct {
		Page       int              `json:"page"`
		Rows       int              `json:"rows"`
		Total      int              `json:"total"`
		TotalPages int              `json:"total_pages"`
		Data       []domain.Station `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 2, body.Rows)
	assert.Equal(t, 52, body.Total)
	assert.Equal(t, 2, body.TotalPages)
	assert.Equal(t, "AFTON", body.Data[0].Name)
	assert.Equal(t, "52", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, "2", rec.Header().Get("X-Total-Pages"))
}

func TestListReadings_TotalPages(t *testing.T) {
	tests := []struct {
		name  string
		total int
		rows  string
		want  int
	}{
		{"empty", 0, "10", 0},
		{"exact fit", 20, "10", 2},
		{"partial last page", 21, "10", 3},
		{"default page size", 2001, "", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQueries{total: tt.total}
			target := "/readings"
			if tt.rows != "" {
				target += "?rows=" + tt.rows
			}
			rec := get(newTestServer(nil, q), target)
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				Total      int `json:"total"`
				TotalPages int `json:"total_pages"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.total, body.Total)
			assert.Equal(t, tt.want, body.TotalPages)
		})
	}
}

func TestListStations_Defaults(t *testing.T) {
	q := &mockQueries{}
	rec := get(newTestServer(nil, q), "/stations")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.Page{Number: 0, Size: 2000}, q.stationQuery.Page)
	assert.Nil(t, q.stationQuery.BBox)
}

func TestListStations_GeoJSON(t *testing.T) {
	q := &mockQueries{stations: testStations(), total: 2}
	rec := get(newTestServer(nil, q), "/stations?format=geojson")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, "1", rec.Header().Get("X-Total-Pages"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1, "stations without coordinates are omitted")
	f := fc.Features[0]
	assert.Equal(t, "11", f.ID)
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.Equal(t, []float64{-120.4816, 50.6733}, f.Geometry.Coordinates)
	assert.Equal(t, "AFTON", f.Properties["station_name"])
}

func TestListStations_BadRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bbox arity", "/stations?bbox=1,2,3"},
		{"bbox not numeric", "/stations?bbox=a,2,3,4"},
		{"bbox inverted", "/stations?bbox=10,0,0,10"},
		{"negative page", "/stations?page=-1"},
		{"rows too large", "/stations?rows=10001"},
		{"rows zero", "/stations?rows=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestServer(nil, &mockQueries{}), tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetStation(t *testing.T) {
	srv := newTestServer(nil, &mockQueries{stations: testStations()})

	rec := get(srv, "/stations/11")
	require.Equal(t, http.StatusOK, rec.Code)
	var st domain.Station
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "AFT", st.Acronym)

	assert.Equal(t, http.StatusNotFound, get(srv, "/stations/999").Code)
	assert.Equal(t, http.StatusBadRequest, get(srv, "/stations/abc").Code)
}

func TestListReadings_DefaultWindow(t *testing.T) {
	now := time.Date(2024, 7, 20, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	defer domain.SetClock(nil)

	q := &mockQueries{readings: []domain.Reading{{StationCode: "11", TimestampMs: now.Add(-time.Hour).UnixMilli()}}}
	rec := get(newTestServer(nil, q), "/readings?stations=11,%2022,")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"11", "22"}, q.readingQuery.Stations)
	assert.Equal(t, now.Add(-24*time.Hour).UnixMilli(), q.readingQuery.StartMs)
	assert.Equal(t, now.UnixMilli(), q.readingQuery.EndMs)
	assert.False(t, q.readingQuery.DailyOnly)
}

func TestListReadings_Dailies(t *testing.T) {
	q := &mockQueries{}
	rec := get(newTestServer(nil, q), "/readings/dailies?start=2024-07-01T00:00:00Z&end=2024-07-20T00:00:00Z")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, q.readingQuery.DailyOnly)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), q.readingQuery.StartMs)
	assert.Nil(t, q.readingQuery.Stations)
}

func TestListReadings_BadWindow(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"over 31 days", "/readings?start=2024-01-01T00:00:00Z&end=2024-03-01T00:00:00Z"},
		{"end before start", "/readings?start=2024-03-01T00:00:00Z&end=2024-01-01T00:00:00Z"},
		{"bad start", "/readings?start=yesterday"},
		{"bad end", "/readings/dailies?end=2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestServer(nil, &mockQueries{}), tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestQueryFailureReturns500(t *testing.T) {
	srv := newTestServer(nil, &mockQueries{err: errors.New("connection reset")})

	for _, target := range []string{"/stations", "/stations/11", "/readings"} {
		rec := get(srv, target)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	}
}
