package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "glacier_telemetry"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion
// and queries.
type Metrics struct {
	LinesRead         prometheus.Counter
	ObservationsSaved prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	LinesSkipped      *prometheus.CounterVec // labels: reason={blank,void,structure,inactive}
	LineFailures      *prometheus.CounterVec // labels: stage={normalize,quality,store,publish}
	FlagsCleared      *prometheus.CounterVec // labels: rule
	StoreRetries      prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Stream batch metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Query metrics.
	QueryRequests *prometheus.CounterVec   // labels: kind, outcome={ok,bad_request,throttled,not_implemented,not_found,error}
	QueryDuration *prometheus.HistogramVec // labels: kind
	CacheLookups  *prometheus.CounterVec   // labels: kind, result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      help("Total raw telemetry lines read."),
		}),
		ObservationsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_saved_total",
			Help:      help("Total observations written to the record store."),
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      help("Lines whose observation already existed."),
		}),
		LinesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_skipped_total",
			Help:      help("Lines skipped before normalization, by reason."),
		}, []string{"reason"}),
		LineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_failures_total",
			Help:      help("Lines that failed, by pipeline stage."),
		}, []string{"stage"}),
		FlagsCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_flags_cleared_total",
			Help:      help("Quality rules that cleared a validity flag, by rule."),
		}, []string{"rule"}),
		StoreRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retries_total",
			Help:      help("Retries after transient record store failures."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when stream ingestion is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      help("Number of messages per batch read from Kafka."),
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      help("Duration of a complete stream batch cycle."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      help("Query requests by kind and outcome."),
		}, []string{"kind", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      help("Query evaluation duration in seconds."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      help("Derived-query cache lookups by kind and result."),
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LinesRead,
		m.ObservationsSaved,
		m.DuplicatesSkipped,
		m.LinesSkipped,
		m.LineFailures,
		m.FlagsCleared,
		m.StoreRetries,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.QueryRequests,
		m.QueryDuration,
		m.CacheLookups,
	}
}
