package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// Metrics groups the service's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RepoCalls    *prometheus.CounterVec
	RepoDuration *prometheus.HistogramVec
	Transitions  *prometheus.CounterVec
	ChangeEvents *prometheus.CounterVec
	Sessions     prometheus.Gauge
	FeedErrors   *prometheus.CounterVec
}

// New registers every collector on a fresh registry along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		RepoCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "calls_total",
			Help:      "Order repository calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		RepoDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "call_duration_seconds",
			Help:      "Order repository call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Confirmed status transitions by target status.",
		}, []string{"status"}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "change_events_total",
			Help:      "Change events received from the feed by type.",
		}, []string{"type"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "sessions",
			Help:      "Open staff websocket sessions.",
		}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "feed_errors_total",
			Help:      "Change feed connection failures by driver.",
		}, []string{"driver"}),
	}

	reg.MustRegister(
		m.RepoCalls,
		m.RepoDuration,
		m.Transitions,
		m.ChangeEvents,
		m.Sessions,
		m.FeedErrors,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRepo records one repository call. Safe on a nil receiver so
// components can run without metrics in tests.
func (m *Metrics) ObserveRepo(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RepoCalls.WithLabelValues(op, outcome).Inc()
	m.RepoDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveChange(eventType string) {
	if m == nil {
		return
	}
	m.ChangeEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveFeedError(driver string) {
	if m == nil {
		return
	}
	m.FeedErrors.WithLabelValues(driver).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.Sessions.Dec()
}
