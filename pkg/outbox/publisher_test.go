package outbox

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/pick-issue-service/pkg/cloudevents"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
)

type fakeRepository struct {
	mu         sync.Mutex
	events     []*OutboxEvent
	published  []string
	retried    map[string]string
	deleteFrom time.Time
	findErr    error
}

func newFakeRepository(events ...*OutboxEvent) *fakeRepository {
	return &fakeRepository{events: events, retried: map[string]string{}}
}

func (r *fakeRepository) SaveAll(ctx context.Context, events []*OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *fakeRepository) FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*OutboxEvent
	for _, e := range r.events {
		if e.Retryable() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepository) MarkPublished(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, e := range r.events {
		if e.ID == eventID {
			e.PublishedAt = &now
		}
	}
	r.published = append(r.published, eventID)
	return nil
}

func (r *fakeRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == eventID {
			e.RetryCount++
			e.LastError = errorMsg
		}
	}
	r.retried[eventID] = errorMsg
	return nil
}

func (r *fakeRepository) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteFrom = before
	return 0, nil
}

func (r *fakeRepository) publishedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.published...)
}

type fakeProducer struct {
	mu      sync.Mutex
	failFor map[string]bool
	sent    []*cloudevents.WMSCloudEvent
	topics  []string
}

func (p *fakeProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[event.Type] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, event)
	p.topics = append(p.topics, topic)
	return nil
}

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig("outbox-test")
	cfg.Output = io.Discard
	return logging.New(cfg)
}

func newEvent(t *testing.T, eventType, topic string) *OutboxEvent {
	t.Helper()
	ce := cloudevents.NewEventFactory(cloudevents.SourcePickIssue).
		CreateOrderEvent(context.Background(), eventType, "ORD-1/SKU-1", "ORD-1", map[string]any{"sku": "SKU-1"})
	event, err := Wrap("PickIssue", "ORD-1/SKU-1", topic, ce)
	require.NoError(t, err)
	return event
}

func TestWrap(t *testing.T) {
	event := newEvent(t, cloudevents.PickIssueReported, "wms.pick-issues.events")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, cloudevents.PickIssueReported, event.EventType)
	assert.Equal(t, DefaultMaxRetries, event.MaxRetries)
	assert.Nil(t, event.PublishedAt)
	assert.True(t, event.Retryable())

	decoded, err := event.CloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "1.0", decoded.SpecVersion)
	assert.Equal(t, "ORD-1", decoded.OrderID)
	assert.Equal(t, cloudevents.SourcePickIssue, decoded.Source)
}

func TestPublisher_ProcessEvents(t *testing.T) {
	reported := newEvent(t, cloudevents.PickIssueReported, "wms.pick-issues.events")
	inventory := newEvent(t, cloudevents.InventoryStatusChanged, "wms.inventory.events")
	repo := newFakeRepository(reported, inventory)
	producer := &fakeProducer{failFor: map[string]bool{cloudevents.InventoryStatusChanged: true}}

	p := NewPublisher(repo, producer, testLogger(), nil, &PublisherConfig{PollInterval: time.Hour, BatchSize: 10})
	p.processEvents(context.Background())

	assert.Equal(t, []string{reported.ID}, repo.publishedIDs())
	assert.Contains(t, repo.retried[inventory.ID], "broker unavailable")
	assert.Equal(t, 1, inventory.RetryCount)
	assert.Equal(t, []string{"wms.pick-issues.events"}, producer.topics)
	assert.Equal(t, map[string]int{"published": 1, "failed": 1}, p.Stats())
}

func TestPublisher_ParksEventsOutOfRetries(t *testing.T) {
	event := newEvent(t, cloudevents.LineItemShorted, "wms.pick-issues.events")
	event.MaxRetries = 2
	repo := newFakeRepository(event)
	producer := &fakeProducer{failFor: map[string]bool{cloudevents.LineItemShorted: true}}

	p := NewPublisher(repo, producer, testLogger(), nil, &PublisherConfig{PollInterval: time.Hour, BatchSize: 10})
	for i := 0; i < 4; i++ {
		p.processEvents(context.Background())
	}

	assert.Equal(t, 2, event.RetryCount)
	assert.False(t, event.Retryable())
}

func TestPublisher_FindFailureIsTolerated(t *testing.T) {
	repo := newFakeRepository()
	repo.findErr = errors.New("store down")

	p := NewPublisher(repo, &fakeProducer{}, testLogger(), nil, nil)
	p.processEvents(context.Background())

	assert.Equal(t, map[string]int{"published": 0, "failed": 0}, p.Stats())
}

func TestPublisher_Cleanup(t *testing.T) {
	repo := newFakeRepository()
	p := NewPublisher(repo, &fakeProducer{}, testLogger(), nil, &PublisherConfig{PollInterval: time.Hour, BatchSize: 1, Retention: 24 * time.Hour})

	p.cleanup(context.Background())
	first := repo.deleteFrom
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), first, time.Minute)

	// second call inside the hour is skipped
	repo.deleteFrom = time.Time{}
	p.cleanup(context.Background())
	assert.True(t, repo.deleteFrom.IsZero())
}

func TestPublisher_StartStop(t *testing.T) {
	event := newEvent(t, cloudevents.CorrectiveTaskCreated, "wms.pick-issues.events")
	repo := newFakeRepository(event)
	p := NewPublisher(repo, &fakeProducer{}, testLogger(), nil, &PublisherConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10})

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return len(repo.publishedIDs()) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())
	assert.Error(t, p.Stop())
}
