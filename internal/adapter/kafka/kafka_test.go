package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func TestSerializeReading(t *testing.T) {
	now := time.Date(2024, 7, 20, 15, 10, 0, 0, time.UTC)
	reading := domain.Reading{
		StationCode: "11",
		TimestampMs: 1721390400000,
		Daily:       true,
		Temperature: ptr(21.5),
	}

	msg, err := serializeReading(reading, domain.CurrentReading, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("11|1721390400000"), msg.Key)
	assert.JSONEq(t, `{"station_code":"11","timestamp_ms":1721390400000,"daily":true,"temperature":21.5}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "variant", msg.Headers[0].Key)
	assert.Equal(t, []byte("current_reading"), msg.Headers[0].Value)
	assert.Equal(t, "ingested_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestPublishReadings_EmptyIsNoop(t *testing.T) {
	w := NewWriter([]string{"localhost:1"}, "wfwx-readings", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	assert.NoError(t, w.PublishReadings(context.Background(), domain.HistoricalReading, nil))
}
