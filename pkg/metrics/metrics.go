package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Store metrics
	DBOperations        *prometheus.CounterVec
	DBOperationDuration *prometheus.HistogramVec

	// Kafka and outbox metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec
	OutboxPending        prometheus.Gauge
	OutboxPublished      *prometheus.CounterVec
	OutboxRetries        *prometheus.CounterVec

	// Pick issue metrics
	PickIssuesTotal           *prometheus.CounterVec
	PickIssueDuration         *prometheus.HistogramVec
	InventoryMutations        *prometheus.CounterVec
	CorrectiveTasksCreated    *prometheus.CounterVec
	SubstituteSearchesMissing *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance with its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"service", "method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "http_requests_in_flight",
		Help:        "Number of HTTP requests currently being processed",
		ConstLabels: constLabels,
	})

	m.DBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "db_operations_total", Help: "Total number of store operations"},
		[]string{"service", "store", "collection", "operation", "status"},
	)
	m.DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "db_operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "store", "collection", "operation"},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_published_total", Help: "Total number of Kafka events published"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)
	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "outbox_pending_events",
		Help:        "Number of unpublished outbox events seen in the last poll",
		ConstLabels: constLabels,
	})
	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_events_published_total", Help: "Outbox events handed to Kafka"},
		[]string{"service", "event_type", "status"},
	)
	m.OutboxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_event_retries_total", Help: "Outbox publish retries"},
		[]string{"service", "event_type"},
	)

	m.PickIssuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "pick_issues_total", Help: "Resolved pick issues by type and outcome"},
		[]string{"service", "issue_type", "next_action"},
	)
	m.PickIssueDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "pick_issue_resolution_duration_seconds",
			Help:      "Time to resolve a pick issue",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "issue_type"},
	)
	m.InventoryMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "inventory_issue_mutations_total", Help: "Inventory records changed by pick issues"},
		[]string{"service", "status"},
	)
	m.CorrectiveTasksCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "corrective_tasks_created_total", Help: "Corrective tasks opened by pick issues"},
		[]string{"service", "priority"},
	)
	m.SubstituteSearchesMissing = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "substitute_bin_not_found_total", Help: "Pick issues with no substitute bin"},
		[]string{"service", "issue_type"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)"},
		[]string{"service", "name"},
	)
	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "circuit_breaker_trips_total", Help: "Total number of circuit breaker trips"},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DBOperations,
		m.DBOperationDuration,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.OutboxPending,
		m.OutboxPublished,
		m.OutboxRetries,
		m.PickIssuesTotal,
		m.PickIssueDuration,
		m.InventoryMutations,
		m.CorrectiveTasksCreated,
		m.SubstituteSearchesMissing,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordDBOperation records a store operation
func (m *Metrics) RecordDBOperation(store, collection, operation string, success bool, duration time.Duration) {
	m.DBOperations.WithLabelValues(m.serviceName, store, collection, operation, statusLabel(success)).Inc()
	m.DBOperationDuration.WithLabelValues(m.serviceName, store, collection, operation).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.RecordDBOperation("mongodb", collection, operation, success, duration)
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of pending outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox publish attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, statusLabel(success)).Inc()
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// RecordPickIssue records a resolved pick issue
func (m *Metrics) RecordPickIssue(issueType, nextAction string, duration time.Duration) {
	m.PickIssuesTotal.WithLabelValues(m.serviceName, issueType, nextAction).Inc()
	m.PickIssueDuration.WithLabelValues(m.serviceName, issueType).Observe(duration.Seconds())
}

// RecordInventoryMutation records an inventory status change caused by a pick issue
func (m *Metrics) RecordInventoryMutation(status string) {
	m.InventoryMutations.WithLabelValues(m.serviceName, status).Inc()
}

// RecordCorrectiveTask records a corrective task creation
func (m *Metrics) RecordCorrectiveTask(priority string) {
	m.CorrectiveTasksCreated.WithLabelValues(m.serviceName, priority).Inc()
}

// RecordSubstituteNotFound records a pick issue that ended in SKIP_ITEM
func (m *Metrics) RecordSubstituteNotFound(issueType string) {
	m.SubstituteSearchesMissing.WithLabelValues(m.serviceName, issueType).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
