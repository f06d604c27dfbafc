package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds idempotency-related Prometheus metrics.
// All vectors are labelled by service, route and method except StorageErrors.
type Metrics struct {
	Hits               *prometheus.CounterVec
	Misses             *prometheus.CounterVec
	ParameterMismatch  *prometheus.CounterVec
	ConcurrentRequests *prometheus.CounterVec
	LockDuration       *prometheus.HistogramVec
	StorageErrors      *prometheus.CounterVec
}

// NewMetrics registers the idempotency metrics on registry, or on the default registerer when nil
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)
	labels := []string{"service", "endpoint", "method"}

	return &Metrics{
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_hits_total",
			Help: "Requests answered from a cached response",
		}, labels),
		Misses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_misses_total",
			Help: "Requests processed for a new idempotency key",
		}, labels),
		ParameterMismatch: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_parameter_mismatches_total",
			Help: "Requests reusing a key with a different body",
		}, labels),
		ConcurrentRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_concurrent_collisions_total",
			Help: "Requests rejected because the key was in flight",
		}, labels),
		LockDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idempotency_lock_acquisition_duration_seconds",
			Help:    "Time taken to acquire an idempotency lock",
			Buckets: prometheus.DefBuckets,
		}, labels),
		StorageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_storage_errors_total",
			Help: "Idempotency storage failures",
		}, []string{"service", "operation"}),
	}
}

// RecordHit records an idempotency cache hit
func (m *Metrics) RecordHit(service, endpoint, method string) {
	if m != nil {
		m.Hits.WithLabelValues(service, endpoint, method).Inc()
	}
}

// RecordMiss records an idempotency cache miss
func (m *Metrics) RecordMiss(service, endpoint, method string) {
	if m != nil {
		m.Misses.WithLabelValues(service, endpoint, method).Inc()
	}
}

// RecordParameterMismatch records a parameter mismatch error
func (m *Metrics) RecordParameterMismatch(service, endpoint, method string) {
	if m != nil {
		m.ParameterMismatch.WithLabelValues(service, endpoint, method).Inc()
	}
}

// RecordConcurrentCollision records a concurrent request collision
func (m *Metrics) RecordConcurrentCollision(service, endpoint, method string) {
	if m != nil {
		m.ConcurrentRequests.WithLabelValues(service, endpoint, method).Inc()
	}
}

// RecordLockAcquisitionDuration records the seconds taken to acquire a lock
func (m *Metrics) RecordLockAcquisitionDuration(service, endpoint, method string, seconds float64) {
	if m != nil {
		m.LockDuration.WithLabelValues(service, endpoint, method).Observe(seconds)
	}
}

// RecordStorageError records a storage error
func (m *Metrics) RecordStorageError(service, operation string) {
	if m != nil {
		m.StorageErrors.WithLabelValues(service, operation).Inc()
	}
}
