package outbox

import (
	"context"
	"time"
)

// Repository persists outbox events
type Repository interface {
	// SaveAll saves events; called inside the transaction that produced them
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns unpublished events that still have retries left, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry increments the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished removes events published before the cutoff
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}
