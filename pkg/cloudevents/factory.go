package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/tracing"
)

// EventFactory creates CloudEvents for WMS domain events
type EventFactory struct {
	source string
	now    func() time.Time
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, now: time.Now}
}

// CreateEvent creates an event and copies correlation and trace context from ctx
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}

	carrier := propagation.MapCarrier{}
	tracing.InjectTraceContext(ctx, carrier)
	event.TraceParent = carrier.Get(ExtTraceParent)
	event.TraceState = carrier.Get(ExtTraceState)

	return event
}

// CreateOrderEvent creates an event tagged with the order it concerns
func (f *EventFactory) CreateOrderEvent(ctx context.Context, eventType, subject, orderID string, data interface{}) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.OrderID = orderID
	return event
}
