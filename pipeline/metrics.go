package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dispatcher's Prometheus instrumentation.
// A nil *Metrics (a Dispatcher built without WithMetrics) is safe to use:
// every method no-ops rather than panicking. NewMetrics itself never
// returns nil.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the dispatcher's collectors against reg. Passing nil
// builds unregistered (but still usable) collectors, which is convenient for
// tests that construct a Dispatcher without a global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwn",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Count of dispatcher requests by interface, method and status code.",
		}, []string{"interface", "method", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dwn",
			Subsystem: "pipeline",
			Name:      "request_duration_seconds",
			Help:      "Dispatcher request latency by interface and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"interface", "method"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency)
	}
	return m
}

func (m *Metrics) observe(iface, method, statusCode string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(iface, method, statusCode).Inc()
	m.latency.WithLabelValues(iface, method).Observe(seconds)
}
