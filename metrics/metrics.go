// Package metrics records client call outcomes as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeOK labels a call that returned a value.
const OutcomeOK = "ok"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	Calls        *prometheus.CounterVec   // calls by operation and outcome
	Duration     *prometheus.HistogramVec // round-trip latency by operation
	RequestSize  *prometheus.HistogramVec
	ResponseSize *prometheus.HistogramVec
}

// New creates the collectors under namespace and registers them on reg.
// It panics if registration fails, like prometheus.MustRegister.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	sizeBuckets := prometheus.ExponentialBuckets(16, 4, 8)

	m := &Metrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Calls issued, by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Round-trip latency of calls.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"op"},
		),
		RequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_size_bytes",
				Help:      "Size of encoded queries.",
				Buckets:   sizeBuckets,
			},
			[]string{"op"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "response_size_bytes",
				Help:      "Size of received envelopes.",
				Buckets:   sizeBuckets,
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(m.Calls, m.Duration, m.RequestSize, m.ResponseSize)
	return m
}

// Observe records one finished call. Sizes below zero are not recorded.
func (m *Metrics) Observe(op, outcome string, d time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(d.Seconds())
	if reqSize >= 0 {
		m.RequestSize.WithLabelValues(op).Observe(float64(reqSize))
	}
	if respSize >= 0 {
		m.ResponseSize.WithLabelValues(op).Observe(float64(respSize))
	}
}
