package sqlstore

import (
	"time"

	"github.com/wms-platform/pick-issue-service/internal/domain"
)

// lineItemRow is the order_line_items table
type lineItemRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	OrderID   string    `gorm:"size:64;not null;uniqueIndex:idx_line_items_order_sku"`
	SKU       string    `gorm:"column:sku;size:64;not null;uniqueIndex:idx_line_items_order_sku"`
	Name      string    `gorm:"size:255"`
	Quantity  int       `gorm:"not null;default:0"`
	Category  string    `gorm:"size:64"`
	Status    string    `gorm:"size:32;not null;index"`
	Location  string    `gorm:"size:64"`
	Notes     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (lineItemRow) TableName() string { return "order_line_items" }

func lineItemFromDomain(item *domain.OrderLineItem) *lineItemRow {
	return &lineItemRow{
		ID:        item.ID,
		OrderID:   item.OrderID,
		SKU:       item.SKU,
		Name:      item.Name,
		Quantity:  item.Quantity,
		Category:  item.Category,
		Status:    string(item.Status),
		Location:  item.Location,
		Notes:     item.Notes,
		UpdatedAt: item.UpdatedAt.UTC(),
	}
}

func (r *lineItemRow) toDomain() *domain.OrderLineItem {
	return &domain.OrderLineItem{
		ID:        r.ID,
		OrderID:   r.OrderID,
		SKU:       r.SKU,
		Name:      r.Name,
		Quantity:  r.Quantity,
		Category:  r.Category,
		Status:    domain.PickStatus(r.Status),
		Location:  r.Location,
		Notes:     r.Notes,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// inventoryRow is the inventory table; (sku, bin_id) is the key
type inventoryRow struct {
	SKU         string     `gorm:"column:sku;primaryKey;size:64"`
	BinID       string     `gorm:"primaryKey;size:64"`
	Quantity    int        `gorm:"not null;default:0"`
	Status      string     `gorm:"size:32;not null;index"`
	ExpiryDate  *time.Time `gorm:"index"`
	BatchNumber string     `gorm:"size:64"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime:false"`
}

func (inventoryRow) TableName() string { return "inventory" }

func inventoryFromDomain(record *domain.InventoryRecord) *inventoryRow {
	row := &inventoryRow{
		SKU:         record.SKU,
		BinID:       record.BinID,
		Quantity:    record.Quantity,
		Status:      string(record.Status),
		BatchNumber: record.BatchNumber,
		UpdatedAt:   record.UpdatedAt.UTC(),
	}
	// expiry is compared as text in sqlite, so it is always stored in UTC
	if record.ExpiryDate != nil {
		expiry := record.ExpiryDate.UTC()
		row.ExpiryDate = &expiry
	}
	return row
}

func (r *inventoryRow) toDomain() *domain.InventoryRecord {
	record := &domain.InventoryRecord{
		SKU:         r.SKU,
		BinID:       r.BinID,
		Quantity:    r.Quantity,
		Status:      domain.InventoryStatus(r.Status),
		BatchNumber: r.BatchNumber,
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.ExpiryDate != nil {
		expiry := r.ExpiryDate.UTC()
		record.ExpiryDate = &expiry
	}
	return record
}

// taskRow is the corrective_tasks table
type taskRow struct {
	ID            string    `gorm:"primaryKey;size:64"`
	Title         string    `gorm:"size:255;not null"`
	Description   string    `gorm:"type:text"`
	AssignedTo    string    `gorm:"size:64;not null;index"`
	OrderID       string    `gorm:"size:64;not null"`
	BinID         string    `gorm:"size:64;not null"`
	SKU           string    `gorm:"column:sku;size:64;not null"`
	IssueReportID string    `gorm:"size:64;not null;index"`
	Status        string    `gorm:"size:32;not null"`
	Priority      string    `gorm:"size:16;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
}

func (taskRow) TableName() string { return "corrective_tasks" }

func taskFromDomain(task *domain.CorrectiveTask) *taskRow {
	return &taskRow{
		ID:            task.ID,
		Title:         task.Title,
		Description:   task.Description,
		AssignedTo:    task.AssignedTo,
		OrderID:       task.OrderID,
		BinID:         task.BinID,
		SKU:           task.SKU,
		IssueReportID: task.IssueReportID,
		Status:        string(task.Status),
		Priority:      task.Priority.String(),
		CreatedAt:     task.CreatedAt.UTC(),
	}
}

func (r *taskRow) toDomain() (*domain.CorrectiveTask, error) {
	priority, err := domain.NewTaskPriority(r.Priority)
	if err != nil {
		return nil, err
	}
	return &domain.CorrectiveTask{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		AssignedTo:    r.AssignedTo,
		OrderID:       r.OrderID,
		BinID:         r.BinID,
		SKU:           r.SKU,
		IssueReportID: r.IssueReportID,
		Status:        domain.TaskStatus(r.Status),
		Priority:      priority,
		CreatedAt:     r.CreatedAt.UTC(),
	}, nil
}

// reportRow is the issue_reports table
type reportRow struct {
	ID              string     `gorm:"primaryKey;size:64"`
	OrderID         string     `gorm:"size:64;not null;index"`
	SKU             string     `gorm:"column:sku;size:64;not null;index"`
	BinID           string     `gorm:"size:64;not null;index"`
	IssueType       string     `gorm:"size:32;not null"`
	ReportedBy      string     `gorm:"size:64;not null"`
	DeviceID        string     `gorm:"size:64"`
	ClientTimestamp *time.Time `gorm:"column:client_timestamp"`
	NextAction      string     `gorm:"size:32;not null"`
	SubstituteBinID string     `gorm:"size:64"`
	CreatedAt       time.Time  `gorm:"autoCreateTime:false;index"`
}

func (reportRow) TableName() string { return "issue_reports" }

func reportFromDomain(report *domain.IssueReport) *reportRow {
	return &reportRow{
		ID:              report.ID,
		OrderID:         report.OrderID,
		SKU:             report.SKU,
		BinID:           report.BinID,
		IssueType:       string(report.IssueType),
		ReportedBy:      report.ReportedBy,
		DeviceID:        report.DeviceID,
		ClientTimestamp: report.ClientTimestamp,
		NextAction:      string(report.NextAction),
		SubstituteBinID: report.SubstituteBinID,
		CreatedAt:       report.CreatedAt.UTC(),
	}
}

func (r *reportRow) toDomain() *domain.IssueReport {
	return &domain.IssueReport{
		ID:              r.ID,
		OrderID:         r.OrderID,
		SKU:             r.SKU,
		BinID:           r.BinID,
		IssueType:       domain.IssueType(r.IssueType),
		ReportedBy:      r.ReportedBy,
		DeviceID:        r.DeviceID,
		ClientTimestamp: r.ClientTimestamp,
		NextAction:      domain.NextAction(r.NextAction),
		SubstituteBinID: r.SubstituteBinID,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}
