package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wms-platform/pick-issue-service/internal/domain"
)

// LineItemRepository implements domain.OrderLineItemRepository with GORM
type LineItemRepository struct {
	db *gorm.DB
}

func NewLineItemRepository(db *gorm.DB) *LineItemRepository {
	return &LineItemRepository{db: db}
}

func (r *LineItemRepository) FindByOrderAndSKU(ctx context.Context, orderID, sku string) (*domain.OrderLineItem, error) {
	var row lineItemRow
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND sku = ?", orderID, sku).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderLineItemNotFound
		}
		return nil, fmt.Errorf("failed to find order line item: %w", err)
	}
	return row.toDomain(), nil
}

func (r *LineItemRepository) UpdateResolution(ctx context.Context, item *domain.OrderLineItem) error {
	updates := map[string]any{
		"status":     string(item.Status),
		"updated_at": item.UpdatedAt.UTC(),
	}
	if item.Location != "" {
		updates["location"] = item.Location
	}

	result := r.db.WithContext(ctx).Model(&lineItemRow{}).
		Where("id = ?", item.ID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update order line item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderLineItemNotFound
	}
	return nil
}

func (r *LineItemRepository) Save(ctx context.Context, item *domain.OrderLineItem) error {
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "quantity", "category", "status", "location", "notes", "updated_at"}),
		}).
		Create(lineItemFromDomain(item)).Error
	if err != nil {
		return fmt.Errorf("failed to save order line item: %w", err)
	}
	return nil
}

// InventoryRepository implements domain.InventoryRepository with GORM
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) FindBySKUAndBin(ctx context.Context, sku, binID string) (*domain.InventoryRecord, error) {
	var row inventoryRow
	err := r.db.WithContext(ctx).
		Where("sku = ? AND bin_id = ?", sku, binID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInventoryRecordNotFound
		}
		return nil, fmt.Errorf("failed to find inventory record: %w", err)
	}
	return row.toDomain(), nil
}

// ApplyMutation updates the record in a single statement; the quantity is
// floored at zero by the database
func (r *InventoryRepository) ApplyMutation(ctx context.Context, sku, binID string, m domain.InventoryMutation) (*domain.InventoryRecord, error) {
	if m.IsZero() {
		return r.FindBySKUAndBin(ctx, sku, binID)
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if m.SetStatus != "" {
		updates["status"] = string(m.SetStatus)
	}
	if m.Decrement != 0 {
		updates["quantity"] = gorm.Expr("MAX(quantity - ?, 0)", m.Decrement)
	}

	result := r.db.WithContext(ctx).Model(&inventoryRow{}).
		Where("sku = ? AND bin_id = ?", sku, binID).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update inventory record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrInventoryRecordNotFound
	}
	return r.FindBySKUAndBin(ctx, sku, binID)
}

func (r *InventoryRepository) FindSubstitute(ctx context.Context, query domain.SubstituteQuery) (*domain.InventoryRecord, error) {
	q := r.db.WithContext(ctx).
		Where("sku = ? AND bin_id <> ? AND status = ? AND quantity > 0",
			query.SKU, query.ExcludeBinID, string(domain.InventoryStatusAvailable))

	if query.Rule.RequireUnexpired {
		q = q.Where("(expiry_date IS NULL OR expiry_date >= ?)", query.Today.UTC())
	}

	switch query.Rule.Order {
	case domain.ExpiryAsc:
		q = q.Order("expiry_date IS NULL").Order("expiry_date ASC").Order("quantity DESC").Order("bin_id ASC")
	default:
		q = q.Order("quantity DESC").Order("bin_id ASC")
	}

	var row inventoryRow
	if err := q.Limit(1).Find(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to search substitute bins: %w", err)
	}
	if row.SKU == "" {
		return nil, nil
	}
	return row.toDomain(), nil
}

func (r *InventoryRepository) Save(ctx context.Context, record *domain.InventoryRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}, {Name: "bin_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "status", "expiry_date", "batch_number", "updated_at"}),
		}).
		Create(inventoryFromDomain(record)).Error
	if err != nil {
		return fmt.Errorf("failed to save inventory record: %w", err)
	}
	return nil
}

// CorrectiveTaskRepository implements domain.CorrectiveTaskRepository with GORM
type CorrectiveTaskRepository struct {
	db *gorm.DB
}

func NewCorrectiveTaskRepository(db *gorm.DB) *CorrectiveTaskRepository {
	return &CorrectiveTaskRepository{db: db}
}

func (r *CorrectiveTaskRepository) Create(ctx context.Context, task *domain.CorrectiveTask) error {
	if err := r.db.WithContext(ctx).Create(taskFromDomain(task)).Error; err != nil {
		return fmt.Errorf("failed to create corrective task: %w", err)
	}
	return nil
}

func (r *CorrectiveTaskRepository) FindByIssueReportID(ctx context.Context, issueReportID string) ([]*domain.CorrectiveTask, error) {
	var rows []taskRow
	err := r.db.WithContext(ctx).
		Where("issue_report_id = ?", issueReportID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find corrective tasks: %w", err)
	}

	tasks := make([]*domain.CorrectiveTask, 0, len(rows))
	for i := range rows {
		task, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode corrective task %s: %w", rows[i].ID, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// IssueReportRepository implements domain.IssueReportRepository with GORM
type IssueReportRepository struct {
	db *gorm.DB
}

func NewIssueReportRepository(db *gorm.DB) *IssueReportRepository {
	return &IssueReportRepository{db: db}
}

func (r *IssueReportRepository) Create(ctx context.Context, report *domain.IssueReport) error {
	if err := r.db.WithContext(ctx).Create(reportFromDomain(report)).Error; err != nil {
		return fmt.Errorf("failed to create issue report: %w", err)
	}
	return nil
}

func (r *IssueReportRepository) FindByID(ctx context.Context, id string) (*domain.IssueReport, error) {
	var row reportRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrIssueReportNotFound
		}
		return nil, fmt.Errorf("failed to find issue report: %w", err)
	}
	return row.toDomain(), nil
}

func (r *IssueReportRepository) List(ctx context.Context, filter domain.IssueReportFilter, limit, offset int) ([]*domain.IssueReport, int64, error) {
	q := r.db.WithContext(ctx).Model(&reportRow{})
	if filter.OrderID != "" {
		q = q.Where("order_id = ?", filter.OrderID)
	}
	if filter.SKU != "" {
		q = q.Where("sku = ?", filter.SKU)
	}
	if filter.BinID != "" {
		q = q.Where("bin_id = ?", filter.BinID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count issue reports: %w", err)
	}

	var rows []reportRow
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list issue reports: %w", err)
	}

	reports := make([]*domain.IssueReport, 0, len(rows))
	for i := range rows {
		reports = append(reports, rows[i].toDomain())
	}
	return reports, total, nil
}
