package wsmanager

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "wsmanager"

// serverMetrics holds the prometheus collectors of a server. A nil *serverMetrics records nothing.
type serverMetrics struct {
	connectionsActive  prometheus.Gauge
	connectionsTotal   prometheus.Counter
	activationFailures prometheus.Counter
	invocations        *prometheus.CounterVec
	invocationDuration prometheus.Histogram
	deliveryFailures   prometheus.Counter
}

func newServerMetrics(registerer prometheus.Registerer) (*serverMetrics, error) {
	m := &serverMetrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections_active",
			Help:      "Number of open connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_total",
			Help:      "Number of accepted connections.",
		}),
		activationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "activation_failures_total",
			Help:      "Number of connections rejected because no hub could be activated.",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invocations_total",
			Help:      "Number of processed frames by result kind.",
		}, []string{"result"}),
		invocationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of hub method invocations.",
			Buckets:   prometheus.DefBuckets,
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_failures_total",
			Help:      "Number of failed writes to single connections during registry sends.",
		}),
	}
	var err error
	if m.connectionsActive, err = register(registerer, m.connectionsActive); err != nil {
		return nil, err
	}
	if m.connectionsTotal, err = register(registerer, m.connectionsTotal); err != nil {
		return nil, err
	}
	if m.activationFailures, err = register(registerer, m.activationFailures); err != nil {
		return nil, err
	}
	if m.invocations, err = register(registerer, m.invocations); err != nil {
		return nil, err
	}
	if m.invocationDuration, err = register(registerer, m.invocationDuration); err != nil {
		return nil, err
	}
	if m.deliveryFailures, err = register(registerer, m.deliveryFailures); err != nil {
		return nil, err
	}
	return m, nil
}

// register returns the already registered collector if servers share a registerer
func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *serverMetrics) connectionOpened() {
	if m != nil {
		m.connectionsTotal.Inc()
		m.connectionsActive.Inc()
	}
}

func (m *serverMetrics) connectionClosed() {
	if m != nil {
		m.connectionsActive.Dec()
	}
}

func (m *serverMetrics) activationFailed() {
	if m != nil {
		m.activationFailures.Inc()
	}
}

func (m *serverMetrics) invoked(result string, start time.Time) {
	if m != nil {
		m.invocations.WithLabelValues(result).Inc()
		m.invocationDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *serverMetrics) rejected(result string) {
	if m != nil {
		m.invocations.WithLabelValues(result).Inc()
	}
}

func (m *serverMetrics) deliveryFailed(count int) {
	if m != nil {
		m.deliveryFailures.Add(float64(count))
	}
}
