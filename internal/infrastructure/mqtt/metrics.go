package mqtt

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "brokerlink"

// Failure kinds recorded by Metrics.
const (
	failureSync  = "sync"
	failureAsync = "async"
)

// Metrics records connection and operation counters in Prometheus.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connectAttempts prometheus.Counter
	connectFailures *prometheus.CounterVec
	connected       prometheus.Gauge
	operationErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "mqtt",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts issued by the connection supervisor.",
		}),
		connectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "mqtt",
			Name:      "connect_failures_total",
			Help:      "Failed connect attempts by how the failure was reported.",
		}, []string{"kind"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "1 when the supervisor last observed a live broker connection.",
		}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "mqtt",
			Name:      "operation_errors_total",
			Help:      "Failed client operations by operation name.",
		}, []string{"operation"}),
	}

	collectors := []prometheus.Collector{
		m.connectAttempts,
		m.connectFailures,
		m.connected,
		m.operationErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering mqtt metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) attempt() {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
}

func (m *Metrics) failure(kind string) {
	if m == nil {
		return
	}
	m.connectFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

func (m *Metrics) operationError(op string) {
	if m == nil {
		return
	}
	m.operationErrors.WithLabelValues(op).Inc()
}
