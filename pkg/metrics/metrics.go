// Package metrics provides Prometheus instrumentation for provider operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives one event per backend request and per multipart abort.
type Observer interface {
	// Observe records a backend operation with optional bytes and error.
	// dur must be the total time spent in the operation.
	Observe(op string, bytes int64, err error, dur time.Duration)

	// ObserveAbort records a multipart abort attempt and its outcome.
	ObserveAbort(err error)
}

// Nop is an Observer that discards everything.
type Nop struct{}

func (Nop) Observe(string, int64, error, time.Duration) {}
func (Nop) ObserveAbort(error)                          {}

// StorageMetrics holds Prometheus collectors for provider instrumentation.
type StorageMetrics struct {
	bytes   *prometheus.CounterVec
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
	aborts  *prometheus.CounterVec
}

var _ Observer = (*StorageMetrics)(nil)

// NewStorageMetrics registers provider metrics on reg. Collectors that are
// already registered are reused, so several providers may share a registry.
func NewStorageMetrics(reg prometheus.Registerer) *StorageMetrics {
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3compat",
		Subsystem: "provider",
		Name:      "bytes_total",
		Help:      "Total request and response body bytes by operation.",
	}, []string{"op"})
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3compat",
		Subsystem: "provider",
		Name:      "ops_total",
		Help:      "Total number of backend operations by result.",
	}, []string{"op", "result"}) // result = "ok" | "error"
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "s3compat",
		Subsystem: "provider",
		Name:      "op_duration_seconds",
		Help:      "Histogram of backend operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	aborts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3compat",
		Subsystem: "provider",
		Name:      "multipart_aborts_total",
		Help:      "Multipart upload sessions aborted, by abort result.",
	}, []string{"result"})

	return &StorageMetrics{
		bytes:   register(reg, bytes),
		ops:     register(reg, ops),
		latency: register(reg, latency),
		aborts:  register(reg, aborts),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// Observe implements Observer.
func (m *StorageMetrics) Observe(op string, bytes int64, err error, dur time.Duration) {
	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.ops.WithLabelValues(op, result(err)).Inc()
	m.latency.WithLabelValues(op).Observe(dur.Seconds())
}

// ObserveAbort implements Observer.
func (m *StorageMetrics) ObserveAbort(err error) {
	m.aborts.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
