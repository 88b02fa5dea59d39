package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tctrack"

// Metrics holds the Prometheus counters and histograms for track ingestion.
type Metrics struct {
	UnitsRead       *prometheus.CounterVec // labels: format
	RecordsIngested *prometheus.CounterVec // labels: format
	RecordsRejected *prometheus.CounterVec // labels: format, reason={schema,identity,source}
	RecordsReplaced *prometheus.CounterVec // labels: format
	FieldErrors     *prometheus.CounterVec // labels: format

	IngestDuration  *prometheus.HistogramVec // labels: format
	SourcesInFlight prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		UnitsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_read_total",
			Help:      "Logical input units (lines, fixes, messages) read from sources.",
		}, []string{"format"}),
		RecordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records assembled and stored in a collection.",
		}, []string{"format"}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Units or records skipped, by reason.",
		}, []string{"format", "reason"}),
		RecordsReplaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_replaced_total",
			Help:      "Records replaced by a later record with the same identity key.",
		}, []string{"format"}),
		FieldErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_errors_total",
			Help:      "Field values that failed conversion and were kept as missing.",
		}, []string{"format"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of reading one source into a collection.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"format"}),
		SourcesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources_in_flight",
			Help:      "Sources currently being read by plural readers.",
		}),
	}
}

// NewMetrics creates the ingestion metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.UnitsRead,
		m.RecordsIngested,
		m.RecordsRejected,
		m.RecordsReplaced,
		m.FieldErrors,
		m.IngestDuration,
		m.SourcesInFlight,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
