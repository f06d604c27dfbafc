// Package sqlstore implements the pick issue unit of work on a SQL database
// through GORM. Only the sqlite dialect is wired.
package sqlstore

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wms-platform/pick-issue-service/internal/domain"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
)

// Open connects to sqlite. Writers are serialized on one connection since
// sqlite allows a single writer at a time.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Store is the GORM implementation of the pick issue unit of work
type Store struct {
	db     *gorm.DB
	events *LoggingEventRecorder
	uow    *unitOfWork
}

// NewStore creates a store on db. Domain events are logged, not published.
func NewStore(db *gorm.DB, logger *logging.Logger) *Store {
	events := NewLoggingEventRecorder(logger)
	return &Store{
		db:     db,
		events: events,
		uow:    newUnitOfWork(db, events),
	}
}

// Migrate creates or updates the tables
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&lineItemRow{},
		&inventoryRow{},
		&taskRow{},
		&reportRow{},
	)
}

// RunInTransaction runs fn in a database transaction; any error rolls it back
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, newUnitOfWork(tx, s.events))
	})
}

func (s *Store) LineItems() domain.OrderLineItemRepository { return s.uow.lineItems }
func (s *Store) Inventory() domain.InventoryRepository     { return s.uow.inventory }
func (s *Store) Tasks() domain.CorrectiveTaskRepository    { return s.uow.tasks }
func (s *Store) Reports() domain.IssueReportRepository     { return s.uow.reports }
func (s *Store) Events() domain.EventRecorder              { return s.events }

// DB returns the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// unitOfWork binds every repository to one *gorm.DB, either the pool or a transaction
type unitOfWork struct {
	lineItems *LineItemRepository
	inventory *InventoryRepository
	tasks     *CorrectiveTaskRepository
	reports   *IssueReportRepository
	events    domain.EventRecorder
}

func newUnitOfWork(db *gorm.DB, events domain.EventRecorder) *unitOfWork {
	return &unitOfWork{
		lineItems: NewLineItemRepository(db),
		inventory: NewInventoryRepository(db),
		tasks:     NewCorrectiveTaskRepository(db),
		reports:   NewIssueReportRepository(db),
		events:    events,
	}
}

func (u *unitOfWork) LineItems() domain.OrderLineItemRepository { return u.lineItems }
func (u *unitOfWork) Inventory() domain.InventoryRepository     { return u.inventory }
func (u *unitOfWork) Tasks() domain.CorrectiveTaskRepository    { return u.tasks }
func (u *unitOfWork) Reports() domain.IssueReportRepository     { return u.reports }
func (u *unitOfWork) Events() domain.EventRecorder              { return u.events }

// LoggingEventRecorder writes domain events to the structured log. The SQL
// backend has no outbox, so nothing is published to Kafka.
type LoggingEventRecorder struct {
	logger *logging.Logger
}

func NewLoggingEventRecorder(logger *logging.Logger) *LoggingEventRecorder {
	return &LoggingEventRecorder{logger: logger}
}

func (r *LoggingEventRecorder) Record(ctx context.Context, aggregateID, orderID string, events ...domain.DomainEvent) error {
	if r.logger == nil {
		return nil
	}
	for _, event := range events {
		r.logger.Event(ctx, event.EventType(), map[string]any{
			"aggregateId": aggregateID,
			"orderId":     orderID,
			"occurredAt":  event.OccurredAt(),
			"payload":     event,
		})
	}
	return nil
}
