package kafka

import (
	"context"
	"time"

	"github.com/wms-platform/pick-issue-service/pkg/cloudevents"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/metrics"
	"github.com/wms-platform/pick-issue-service/pkg/resilience"
)

// CircuitBreakerProducer wraps a publisher with circuit breaker protection
type CircuitBreakerProducer struct {
	producer       EventPublisher
	circuitBreaker *resilience.CircuitBreaker
}

// NewCircuitBreakerProducer creates a circuit breaker protected publisher
func NewCircuitBreakerProducer(producer EventPublisher, logger *logging.Logger, m *metrics.Metrics) *CircuitBreakerProducer {
	config := &resilience.CircuitBreakerConfig{
		Name:                  "kafka-producer",
		MaxRequests:           5,
		Interval:              time.Minute,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}

	var observer resilience.StateObserver
	if m != nil {
		observer = m
	}

	return &CircuitBreakerProducer{
		producer:       producer,
		circuitBreaker: resilience.NewCircuitBreaker(config, logger.Logger, observer),
	}
}

// PublishEvent publishes a CloudEvent with circuit breaker protection
func (p *CircuitBreakerProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	return p.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return p.producer.PublishEvent(ctx, topic, event)
	})
}

// NewProductionProducer builds the producer stack used by the outbox publisher:
// kafka writer, instrumentation, then circuit breaker
func NewProductionProducer(config *Config, m *metrics.Metrics, logger *logging.Logger) (*CircuitBreakerProducer, *Producer) {
	base := NewProducer(config)
	instrumented := NewInstrumentedProducer(base, m, logger)
	return NewCircuitBreakerProducer(instrumented, logger, m), base
}
