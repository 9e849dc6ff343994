package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for hub operations.
const (
	OutcomeAccepted    = "accepted"
	OutcomeNoop        = "noop"
	OutcomeInvalid     = "invalid"
	OutcomeDuplicate   = "duplicate"
	OutcomeLimit       = "limit"
	OutcomeRateLimited = "rate_limited"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is
// valid and records nothing, so components can treat metrics as optional.
type Metrics struct {
	Operations          *prometheus.CounterVec
	RegistrySize        prometheus.Gauge
	Connections         prometheus.Gauge
	Evictions           prometheus.Counter
	PersistWrites       *prometheus.CounterVec
	PersistDuration     prometheus.Histogram
	FeedPublishFailures prometheus.Counter
}

// New creates and registers all metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workerhub_operations_total",
			Help: "Registry operations submitted by connections, by operation and outcome",
		}, []string{"op", "outcome"}),
		RegistrySize: f.NewGauge(prometheus.GaugeOpts{
			Name: "workerhub_registry_size",
			Help: "Current number of records in the registry",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "workerhub_connections",
			Help: "Currently connected subscribers",
		}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "workerhub_subscriber_evictions_total",
			Help: "Subscribers disconnected because their outbound buffer overflowed",
		}),
		PersistWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workerhub_persist_writes_total",
			Help: "Completed snapshot writes by result",
		}, []string{"result"}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "workerhub_persist_duration_seconds",
			Help:    "Duration of snapshot writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		FeedPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "workerhub_feed_publish_failures_total",
			Help: "Change feed events that could not be published",
		}),
	}
}

// IncOperation records one operation outcome.
func (m *Metrics) IncOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

// SetRegistrySize records the current registry size.
func (m *Metrics) SetRegistrySize(n int) {
	if m == nil {
		return
	}
	m.RegistrySize.Set(float64(n))
}

// SetConnections records the current subscriber count.
func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(n))
}

// IncEvictions records a slow subscriber eviction.
func (m *Metrics) IncEvictions() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}

// ObservePersist records a finished snapshot write.
// Call with time.Now() captured at the start of the write.
func (m *Metrics) ObservePersist(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PersistWrites.WithLabelValues(result).Inc()
	m.PersistDuration.Observe(time.Since(start).Seconds())
}

// IncFeedPublishFailures records a change feed publishing failure.
func (m *Metrics) IncFeedPublishFailures() {
	if m == nil {
		return
	}
	m.FeedPublishFailures.Inc()
}
