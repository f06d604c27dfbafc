package mongodb

import (
	"context"
	"fmt"
	"strings"

	"github.com/wms-platform/pick-issue-service/internal/domain"
	"github.com/wms-platform/pick-issue-service/pkg/cloudevents"
	"github.com/wms-platform/pick-issue-service/pkg/kafka"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/outbox"
)

// AggregateTypePickIssue tags outbox rows written for a resolution
const AggregateTypePickIssue = "PickIssue"

type outboxSaver interface {
	SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error
}

// OutboxEventRecorder turns domain events into CloudEvents and writes them to
// the outbox in the caller's transaction
type OutboxEventRecorder struct {
	outbox       outboxSaver
	eventFactory *cloudevents.EventFactory
	logger       *logging.Logger
}

func NewOutboxEventRecorder(repo outboxSaver, eventFactory *cloudevents.EventFactory, logger *logging.Logger) *OutboxEventRecorder {
	return &OutboxEventRecorder{
		outbox:       repo,
		eventFactory: eventFactory,
		logger:       logger,
	}
}

func (r *OutboxEventRecorder) Record(ctx context.Context, aggregateID, orderID string, events ...domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		ce := r.eventFactory.CreateOrderEvent(ctx, event.EventType(), aggregateID, orderID, event)
		ce.Time = event.OccurredAt().UTC()

		row, err := outbox.Wrap(AggregateTypePickIssue, aggregateID, TopicFor(event.EventType()), ce)
		if err != nil {
			return fmt.Errorf("failed to build outbox event %s: %w", event.EventType(), err)
		}
		rows = append(rows, row)
	}

	if err := r.outbox.SaveAll(ctx, rows); err != nil {
		return err
	}

	if r.logger != nil {
		r.logger.WithContext(ctx).Debug("Recorded outbox events",
			"aggregateId", aggregateID,
			"count", len(rows),
		)
	}
	return nil
}

// TopicFor routes inventory events to the inventory topic and everything
// else to the pick issue topic
func TopicFor(eventType string) string {
	if strings.HasPrefix(eventType, "wms.inventory.") {
		return kafka.Topics.InventoryEvents
	}
	return kafka.Topics.PickIssueEvents
}
