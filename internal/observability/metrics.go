package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wfwx_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ingestion walker.
type Metrics struct {
	FeedsFetched    *prometheus.CounterVec   // labels: variant, outcome={found,not_found,unreachable}
	Rows            *prometheus.CounterVec   // labels: variant, result={persisted,skipped,malformed,failed}
	FeedDuration    *prometheus.HistogramVec // labels: variant
	PublishErrors   prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Cursor state.
	ConsecutiveMisses prometheus.Gauge
	WalkerState       prometheus.Gauge
	CursorYear        prometheus.Gauge
}

// NewMetrics creates and registers all walker metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedsFetched,
		m.Rows,
		m.FeedDuration,
		m.PublishErrors,
		m.PipelineRunning,
		m.ConsecutiveMisses,
		m.WalkerState,
		m.CursorYear,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feeds_fetched_total",
			Help:      "Datamart feed requests by variant and outcome.",
		}, []string{"variant", "outcome"}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Feed rows by variant and ingestion result.",
		}, []string{"variant", "result"}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_processing_duration_seconds",
			Help:      "Duration of fetching and persisting one feed.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"variant"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish readings to Kafka.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the walker is running, 0 otherwise.",
		}),
		ConsecutiveMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_misses",
			Help:      "Daily feeds not found since the last successful fetch.",
		}),
		WalkerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "walker_state",
			Help:      "Walker state: 0 backfill, 1 current year, 2 done.",
		}),
		CursorYear: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_year",
			Help:      "Year of the feed the walker is processing.",
		}),
	}
}
