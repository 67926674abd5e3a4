package review

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus collectors of the review flow. A nil *Metrics
// records nothing.
type Metrics struct {
	assignments   *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	events        *prometheus.CounterVec
	markerCalls   *prometheus.CounterVec
	markerLatency *prometheus.HistogramVec
	failures      *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		assignments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lamp_review_assignments_total",
			Help: "Review jobs created, by content type and path",
		}, []string{"type", "path"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lamp_review_decisions_total",
			Help: "Review decisions persisted, by resulting status",
		}, []string{"status"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lamp_dispatch_events_total",
			Help: "State change events dispatched, by outcome",
		}, []string{"outcome"}),
		markerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lamp_dispatch_marker_calls_total",
			Help: "Status marker invocations, by marker and result",
		}, []string{"marker", "result"}),
		markerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lamp_dispatch_marker_duration_seconds",
			Help:    "Status marker invocation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"marker"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lamp_dispatch_marker_failures_total",
			Help: "Status markers that gave up on a decision",
		}, []string{"marker"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "lamp_dispatch_queue_depth",
			Help: "State change events waiting for a worker",
		}),
	}
}

func (m *Metrics) assigned(t, path string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(t, path).Inc()
}

func (m *Metrics) decided(status Status) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) dispatched(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}

func (m *Metrics) markerCalled(marker string, err error, d time.Duration) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.markerCalls.WithLabelValues(marker, result).Inc()
	m.markerLatency.WithLabelValues(marker).Observe(d.Seconds())
}

func (m *Metrics) markerFailed(marker string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(marker).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
