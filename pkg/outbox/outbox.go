package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/pick-issue-service/pkg/cloudevents"
)

// DefaultMaxRetries is how many failed publishes park an event for good
const DefaultMaxRetries = 10

// OutboxEvent is a serialized CloudEvent committed in the same transaction
// as the writes it describes. The publisher moves it to Topic later.
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	Topic         string          `bson:"topic" json:"topic"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`

	// Delivery bookkeeping, owned by the publisher
	PublishedAt *time.Time `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount  int        `bson:"retryCount" json:"retryCount"`
	MaxRetries  int        `bson:"maxRetries" json:"maxRetries"`
	LastError   string     `bson:"lastError,omitempty" json:"lastError,omitempty"`
}

// Wrap serializes ce into an unpublished outbox row bound for topic
func Wrap(aggregateType, aggregateID, topic string, ce *cloudevents.WMSCloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(ce)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Topic:         topic,
		EventType:     ce.Type,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		MaxRetries:    DefaultMaxRetries,
	}, nil
}

// Retryable reports whether the publisher should still try to deliver the event
func (e *OutboxEvent) Retryable() bool {
	return e.PublishedAt == nil && e.RetryCount < e.MaxRetries
}

// CloudEvent decodes Payload
func (e *OutboxEvent) CloudEvent() (*cloudevents.WMSCloudEvent, error) {
	var ce cloudevents.WMSCloudEvent
	if err := json.Unmarshal(e.Payload, &ce); err != nil {
		return nil, err
	}
	return &ce, nil
}
