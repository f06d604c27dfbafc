package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/pick-issue-service/internal/domain"
	"github.com/wms-platform/pick-issue-service/pkg/cloudevents"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
	pkgmongo "github.com/wms-platform/pick-issue-service/pkg/mongodb"
	outboxMongo "github.com/wms-platform/pick-issue-service/pkg/outbox/mongodb"
)

// Collection names
const (
	CollectionLineItems = "order_line_items"
	CollectionInventory = "inventory"
	CollectionTasks     = "corrective_tasks"
	CollectionReports   = "issue_reports"
)

// Store is the MongoDB implementation of the pick issue unit of work.
// Repositories join a transaction through the session carried by ctx, so
// the same instances serve both transactional and plain reads.
type Store struct {
	client    *pkgmongo.CircuitBreakerClient
	lineItems *LineItemRepository
	inventory *InventoryRepository
	tasks     *CorrectiveTaskRepository
	reports   *IssueReportRepository
	events    *OutboxEventRecorder
	outbox    *outboxMongo.OutboxRepository
}

// NewStore wires the repositories onto client
func NewStore(client *pkgmongo.CircuitBreakerClient, eventFactory *cloudevents.EventFactory, logger *logging.Logger) *Store {
	outboxRepo := outboxMongo.NewOutboxRepository(client.Database())

	return &Store{
		client:    client,
		lineItems: NewLineItemRepository(client.Collection(CollectionLineItems)),
		inventory: NewInventoryRepository(client.Collection(CollectionInventory)),
		tasks:     NewCorrectiveTaskRepository(client.Collection(CollectionTasks)),
		reports:   NewIssueReportRepository(client.Collection(CollectionReports)),
		events:    NewOutboxEventRecorder(outboxRepo, eventFactory, logger),
		outbox:    outboxRepo,
	}
}

// RunInTransaction runs fn in a MongoDB transaction. The driver retries fn on
// transient transaction errors, so fn must not keep state between attempts.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return s.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx, s)
	})
}

func (s *Store) LineItems() domain.OrderLineItemRepository { return s.lineItems }
func (s *Store) Inventory() domain.InventoryRepository     { return s.inventory }
func (s *Store) Tasks() domain.CorrectiveTaskRepository    { return s.tasks }
func (s *Store) Reports() domain.IssueReportRepository     { return s.reports }
func (s *Store) Events() domain.EventRecorder              { return s.events }

// Outbox returns the outbox repository polled by the publisher
func (s *Store) Outbox() *outboxMongo.OutboxRepository {
	return s.outbox
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// EnsureIndexes creates the indexes of every collection
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, ensure := range []func(context.Context) error{
		s.lineItems.EnsureIndexes,
		s.inventory.EnsureIndexes,
		s.tasks.EnsureIndexes,
		s.reports.EnsureIndexes,
		s.outbox.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return err
		}
	}
	return nil
}
