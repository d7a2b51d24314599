package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rtdb_bridge"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics groups the collectors of the adapter and the document store. All
// methods are safe on a nil receiver so instrumentation stays optional.
type Metrics struct {
	activeListeners prometheus.Gauge
	subscribers     prometheus.Gauge
	reads           *prometheus.CounterVec
	writes          *prometheus.CounterVec
	requests        *prometheus.CounterVec
	changes         prometheus.Counter
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activeListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listeners",
			Name:      "active",
			Help:      "Number of active (path, event) listener keys with a running watch.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listeners",
			Name:      "subscribers",
			Help:      "Number of registered callbacks across all listener keys.",
		}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "reads_total",
			Help:      "Reads performed against the document store.",
		}, []string{"kind", "outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "writes_total",
			Help:      "Mutations performed against the document store.",
		}, []string{"op", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "docstore",
			Name:      "requests_total",
			Help:      "HTTP requests served by the document store.",
		}, []string{"method", "status"}),
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "docstore",
			Name:      "changes_total",
			Help:      "Committed document changes published to the change feed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.activeListeners, m.subscribers, m.reads, m.writes, m.requests, m.changes)
	}
	return m
}

func (m *Metrics) ListenerActivated() {
	if m != nil {
		m.activeListeners.Inc()
	}
}

func (m *Metrics) ListenerDeactivated() {
	if m != nil {
		m.activeListeners.Dec()
	}
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.subscribers.Dec()
	}
}

// ObserveRead counts one read; kind is "once" or "watch".
func (m *Metrics) ObserveRead(kind, outcome string) {
	if m != nil {
		m.reads.WithLabelValues(kind, outcome).Inc()
	}
}

// ObserveWrite counts one mutation; op is "set", "update" or "remove".
func (m *Metrics) ObserveWrite(op, outcome string) {
	if m != nil {
		m.writes.WithLabelValues(op, outcome).Inc()
	}
}

func (m *Metrics) ObserveRequest(method string, status int) {
	if m != nil {
		m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
}

func (m *Metrics) ChangePublished() {
	if m != nil {
		m.changes.Inc()
	}
}
