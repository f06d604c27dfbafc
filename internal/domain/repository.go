package domain

import "context"

// OrderLineItemRepository persists order line items
type OrderLineItemRepository interface {
	// FindByOrderAndSKU returns ErrOrderLineItemNotFound when absent
	FindByOrderAndSKU(ctx context.Context, orderID, sku string) (*OrderLineItem, error)
	// UpdateResolution writes status, location and updatedAt by id
	UpdateResolution(ctx context.Context, item *OrderLineItem) error
	Save(ctx context.Context, item *OrderLineItem) error
}

// InventoryRepository persists the inventory ledger
type InventoryRepository interface {
	FindBySKUAndBin(ctx context.Context, sku, binID string) (*InventoryRecord, error)
	// ApplyMutation atomically applies m to (sku, binID) and returns the updated
	// record, or ErrInventoryRecordNotFound
	ApplyMutation(ctx context.Context, sku, binID string, m InventoryMutation) (*InventoryRecord, error)
	// FindSubstitute returns the first record in query order, or nil when none qualifies
	FindSubstitute(ctx context.Context, query SubstituteQuery) (*InventoryRecord, error)
	// Save upserts by (sku, binId)
	Save(ctx context.Context, record *InventoryRecord) error
}

// CorrectiveTaskRepository persists corrective tasks
type CorrectiveTaskRepository interface {
	Create(ctx context.Context, task *CorrectiveTask) error
	FindByIssueReportID(ctx context.Context, issueReportID string) ([]*CorrectiveTask, error)
}

// IssueReportFilter narrows a report listing; empty fields match everything
type IssueReportFilter struct {
	OrderID string
	SKU     string
	BinID   string
}

// IssueReportRepository persists the issue audit log. Reports are insert-only.
type IssueReportRepository interface {
	Create(ctx context.Context, report *IssueReport) error
	// FindByID returns ErrIssueReportNotFound when absent
	FindByID(ctx context.Context, id string) (*IssueReport, error)
	// List returns reports newest first and the total match count
	List(ctx context.Context, filter IssueReportFilter, limit, offset int) ([]*IssueReport, int64, error)
}

// EventRecorder stores domain events with the state change that produced them
type EventRecorder interface {
	Record(ctx context.Context, aggregateID, orderID string, events ...DomainEvent) error
}

// UnitOfWork groups the repositories that share one transaction
type UnitOfWork interface {
	LineItems() OrderLineItemRepository
	Inventory() InventoryRepository
	Tasks() CorrectiveTaskRepository
	Reports() IssueReportRepository
	Events() EventRecorder
}

// TransactionRunner runs fn in a single transaction. fn may be executed more
// than once when the store retries a transient conflict.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
