package callback

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "loopback_login"

// Metrics are shared by all listeners of a process. Register them once.
type Metrics struct {
	requests *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	wait     prometheus.Histogram
}

// NewMetrics creates the listener metrics and registers them on reg, if
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "callback_requests_total",
			Help:      "Requests received by the loopback callback endpoint",
		}, []string{"method", "status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "callback_outcomes_total",
			Help:      "Resolved callback outcomes by kind",
		}, []string{"outcome"}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "callback_wait_seconds",
			Help:      "Time spent waiting for the authorization callback",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.outcomes, m.wait)
	}
	return m
}
