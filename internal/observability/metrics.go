package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Writer metrics
	RecordsWritten *prometheus.CounterVec
	Flushes        *prometheus.CounterVec
	BytesWritten   *prometheus.CounterVec
	EncodeDuration *prometheus.HistogramVec

	// Task metrics
	Tasks              *prometheus.CounterVec
	EndpointsConnected prometheus.Gauge
	Errors             *prometheus.CounterVec

	// Report metrics
	ReportsPublished *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		RecordsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockeventwriter_records_written_total",
				Help: "Total number of records written to socket peers",
			},
			[]string{"endpoint", "format"},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockeventwriter_flushes_total",
				Help: "Total number of flush policy triggers",
			},
			[]string{"endpoint", "format"},
		),
		BytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockeventwriter_bytes_written_total",
				Help: "Total number of bytes written to socket peers",
			},
			[]string{"endpoint"},
		),
		EncodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sockeventwriter_encode_duration_seconds",
				Help:    "Duration of encoding jobs",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"format"},
		),
		Tasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockeventwriter_tasks_total",
				Help: "Total number of worker tasks by terminal status",
			},
			[]string{"status"},
		),
		EndpointsConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sockeventwriter_endpoints_connected",
				Help: "Number of endpoints with a connected peer",
			},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockeventwriter_errors_total",
				Help: "Total number of task errors by kind",
			},
			[]string{"endpoint", "kind"},
		),
		ReportsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockeventwriter_reports_published_total",
				Help: "Total number of run reports published",
			},
			[]string{"backend", "status"},
		),
	}
}

// ObserveJob records the outcome of one encoding job.
func (m *Metrics) ObserveJob(endpoint, format string, records, flushes int64, seconds float64) {
	if m == nil {
		return
	}
	m.RecordsWritten.WithLabelValues(endpoint, format).Add(float64(records))
	m.Flushes.WithLabelValues(endpoint, format).Add(float64(flushes))
	m.EncodeDuration.WithLabelValues(format).Observe(seconds)
}

// AddBytesWritten adds bytes delivered to an endpoint's peer.
func (m *Metrics) AddBytesWritten(endpoint string, bytes int64) {
	if m == nil {
		return
	}
	m.BytesWritten.WithLabelValues(endpoint).Add(float64(bytes))
}

// IncTasks counts a task reaching a terminal status.
func (m *Metrics) IncTasks(status string) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(status).Inc()
}

// IncEndpointsConnected marks a peer as connected.
func (m *Metrics) IncEndpointsConnected() {
	if m == nil {
		return
	}
	m.EndpointsConnected.Inc()
}

// DecEndpointsConnected marks a peer as released.
func (m *Metrics) DecEndpointsConnected() {
	if m == nil {
		return
	}
	m.EndpointsConnected.Dec()
}

// IncErrors counts a task error of the given kind.
func (m *Metrics) IncErrors(endpoint, kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(endpoint, kind).Inc()
}

// IncReportsPublished counts a run report publication attempt.
func (m *Metrics) IncReportsPublished(backend, status string) {
	if m == nil {
		return
	}
	m.ReportsPublished.WithLabelValues(backend, status).Inc()
}
