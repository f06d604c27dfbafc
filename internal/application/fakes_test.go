package application

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/wms-platform/pick-issue-service/internal/domain"
)

// memState is the data behind memStore; transactions work on a copy
type memState struct {
	lineItems map[string]*domain.OrderLineItem
	inventory map[string]*domain.InventoryRecord
	tasks     []*domain.CorrectiveTask
	reports   []*domain.IssueReport
	events    []domain.DomainEvent
}

func invKey(sku, bin string) string    { return sku + "|" + bin }
func itemKey(order, sku string) string { return order + "|" + sku }

func (s *memState) clone() *memState {
	c := &memState{
		lineItems: make(map[string]*domain.OrderLineItem, len(s.lineItems)),
		inventory: make(map[string]*domain.InventoryRecord, len(s.inventory)),
		tasks:     append([]*domain.CorrectiveTask(nil), s.tasks...),
		reports:   append([]*domain.IssueReport(nil), s.reports...),
		events:    append([]domain.DomainEvent(nil), s.events...),
	}
	for k, v := range s.lineItems {
		item := *v
		c.lineItems[k] = &item
	}
	for k, v := range s.inventory {
		rec := *v
		c.inventory[k] = &rec
	}
	return c
}

// memStore is an in-memory TransactionRunner with injectable failures
type memStore struct {
	mu     sync.Mutex
	state  *memState
	failOn map[string]error
	calls  []string

	// retries reruns the transaction body this many extra times, discarding
	// each earlier attempt, the way the Mongo driver does on transient errors
	retries int
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			lineItems: map[string]*domain.OrderLineItem{},
			inventory: map[string]*domain.InventoryRecord{},
		},
		failOn: map[string]error{},
	}
}

func (m *memStore) addInventory(records ...*domain.InventoryRecord) {
	for _, r := range records {
		m.state.inventory[invKey(r.SKU, r.BinID)] = r
	}
}

func (m *memStore) addLineItem(item *domain.OrderLineItem) {
	m.state.lineItems[itemKey(item.OrderID, item.SKU)] = item
}

func (m *memStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < m.retries; i++ {
		_ = fn(ctx, &memUnitOfWork{store: m, state: m.state.clone()})
	}

	tx := &memUnitOfWork{store: m, state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) hit(op string) error {
	m.calls = append(m.calls, op)
	return m.failOn[op]
}

func (m *memStore) inventoryAt(sku, bin string) *domain.InventoryRecord {
	return m.state.inventory[invKey(sku, bin)]
}

func (m *memStore) lineItem(order, sku string) *domain.OrderLineItem {
	return m.state.lineItems[itemKey(order, sku)]
}

// FindByID, List and Create make memStore usable as the report reader
func (m *memStore) Create(ctx context.Context, report *domain.IssueReport) error {
	m.state.reports = append(m.state.reports, report)
	return nil
}

func (m *memStore) FindByID(ctx context.Context, id string) (*domain.IssueReport, error) {
	if err := m.hit("reports.find"); err != nil {
		return nil, err
	}
	for _, r := range m.state.reports {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrIssueReportNotFound
}

func (m *memStore) List(ctx context.Context, filter domain.IssueReportFilter, limit, offset int) ([]*domain.IssueReport, int64, error) {
	if err := m.hit("reports.list"); err != nil {
		return nil, 0, err
	}
	var matched []*domain.IssueReport
	for _, r := range m.state.reports {
		if (filter.OrderID == "" || r.OrderID == filter.OrderID) &&
			(filter.SKU == "" || r.SKU == filter.SKU) &&
			(filter.BinID == "" || r.BinID == filter.BinID) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

type memUnitOfWork struct {
	store *memStore
	state *memState
}

func (u *memUnitOfWork) LineItems() domain.OrderLineItemRepository { return memLineItems{u} }
func (u *memUnitOfWork) Inventory() domain.InventoryRepository     { return memInventory{u} }
func (u *memUnitOfWork) Tasks() domain.CorrectiveTaskRepository    { return memTasks{u} }
func (u *memUnitOfWork) Reports() domain.IssueReportRepository     { return memReports{u} }
func (u *memUnitOfWork) Events() domain.EventRecorder              { return memEvents{u} }

type memLineItems struct{ u *memUnitOfWork }

func (r memLineItems) FindByOrderAndSKU(ctx context.Context, orderID, sku string) (*domain.OrderLineItem, error) {
	if err := r.u.store.hit("lineItems.find"); err != nil {
		return nil, err
	}
	item, ok := r.u.state.lineItems[itemKey(orderID, sku)]
	if !ok {
		return nil, domain.ErrOrderLineItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (r memLineItems) UpdateResolution(ctx context.Context, item *domain.OrderLineItem) error {
	if err := r.u.store.hit("lineItems.update"); err != nil {
		return err
	}
	stored, ok := r.u.state.lineItems[itemKey(item.OrderID, item.SKU)]
	if !ok {
		return errors.New("line item vanished")
	}
	stored.Status = item.Status
	stored.Location = item.Location
	stored.UpdatedAt = item.UpdatedAt
	return nil
}

func (r memLineItems) Save(ctx context.Context, item *domain.OrderLineItem) error {
	cp := *item
	r.u.state.lineItems[itemKey(item.OrderID, item.SKU)] = &cp
	return nil
}

type memInventory struct{ u *memUnitOfWork }

func (r memInventory) FindBySKUAndBin(ctx context.Context, sku, binID string) (*domain.InventoryRecord, error) {
	rec, ok := r.u.state.inventory[invKey(sku, binID)]
	if !ok {
		return nil, domain.ErrInventoryRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r memInventory) ApplyMutation(ctx context.Context, sku, binID string, m domain.InventoryMutation) (*domain.InventoryRecord, error) {
	if err := r.u.store.hit("inventory.mutate"); err != nil {
		return nil, err
	}
	rec, ok := r.u.state.inventory[invKey(sku, binID)]
	if !ok {
		return nil, domain.ErrInventoryRecordNotFound
	}
	rec.ApplyMutation(m, rec.UpdatedAt)
	cp := *rec
	return &cp, nil
}

func (r memInventory) FindSubstitute(ctx context.Context, query domain.SubstituteQuery) (*domain.InventoryRecord, error) {
	if err := r.u.store.hit("inventory.substitute"); err != nil {
		return nil, err
	}
	records := make([]*domain.InventoryRecord, 0, len(r.u.state.inventory))
	for _, rec := range r.u.state.inventory {
		records = append(records, rec)
	}
	return query.Select(records), nil
}

func (r memInventory) Save(ctx context.Context, record *domain.InventoryRecord) error {
	cp := *record
	r.u.state.inventory[invKey(record.SKU, record.BinID)] = &cp
	return nil
}

type memTasks struct{ u *memUnitOfWork }

func (r memTasks) Create(ctx context.Context, task *domain.CorrectiveTask) error {
	if err := r.u.store.hit("tasks.create"); err != nil {
		return err
	}
	r.u.state.tasks = append(r.u.state.tasks, task)
	return nil
}

func (r memTasks) FindByIssueReportID(ctx context.Context, issueReportID string) ([]*domain.CorrectiveTask, error) {
	var out []*domain.CorrectiveTask
	for _, t := range r.u.state.tasks {
		if t.IssueReportID == issueReportID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memReports struct{ u *memUnitOfWork }

func (r memReports) Create(ctx context.Context, report *domain.IssueReport) error {
	if err := r.u.store.hit("reports.create"); err != nil {
		return err
	}
	r.u.state.reports = append(r.u.state.reports, report)
	return nil
}

func (r memReports) FindByID(ctx context.Context, id string) (*domain.IssueReport, error) {
	for _, rep := range r.u.state.reports {
		if rep.ID == id {
			return rep, nil
		}
	}
	return nil, domain.ErrIssueReportNotFound
}

func (r memReports) List(ctx context.Context, filter domain.IssueReportFilter, limit, offset int) ([]*domain.IssueReport, int64, error) {
	return nil, 0, errors.New("not used inside transactions")
}

type memEvents struct{ u *memUnitOfWork }

func (r memEvents) Record(ctx context.Context, aggregateID, orderID string, events ...domain.DomainEvent) error {
	if err := r.u.store.hit("events.record"); err != nil {
		return err
	}
	r.u.state.events = append(r.u.state.events, events...)
	return nil
}
