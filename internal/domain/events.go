package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// PickIssueReportedEvent is published for every resolved issue
type PickIssueReportedEvent struct {
	IssueReportID   string    `json:"issueReportId"`
	OrderID         string    `json:"orderId"`
	SKU             string    `json:"sku"`
	BinID           string    `json:"binId"`
	IssueType       string    `json:"issueType"`
	ReportedBy      string    `json:"reportedBy"`
	DeviceID        string    `json:"deviceId,omitempty"`
	NextAction      string    `json:"nextAction"`
	SubstituteBinID string    `json:"substituteBinId,omitempty"`
	ReportedAt      time.Time `json:"reportedAt"`
}

func (e *PickIssueReportedEvent) EventType() string     { return "wms.picking.issue-reported" }
func (e *PickIssueReportedEvent) OccurredAt() time.Time { return e.ReportedAt }

// InventoryStatusChangedEvent is published when an issue changes a bin's stock
type InventoryStatusChangedEvent struct {
	IssueReportID string    `json:"issueReportId"`
	SKU           string    `json:"sku"`
	BinID         string    `json:"binId"`
	Status        string    `json:"status"`
	Quantity      int       `json:"quantity"`
	ChangedAt     time.Time `json:"changedAt"`
}

func (e *InventoryStatusChangedEvent) EventType() string     { return "wms.inventory.status-changed" }
func (e *InventoryStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }

// CorrectiveTaskCreatedEvent is published when an issue opens a corrective task
type CorrectiveTaskCreatedEvent struct {
	TaskID        string    `json:"taskId"`
	IssueReportID string    `json:"issueReportId"`
	OrderID       string    `json:"orderId"`
	BinID         string    `json:"binId"`
	SKU           string    `json:"sku"`
	Title         string    `json:"title"`
	Priority      string    `json:"priority"`
	AssignedTo    string    `json:"assignedTo"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (e *CorrectiveTaskCreatedEvent) EventType() string     { return "wms.picking.corrective-task-created" }
func (e *CorrectiveTaskCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// LineItemReassignedEvent is published when a line item moves to a substitute bin
type LineItemReassignedEvent struct {
	LineItemID    string    `json:"lineItemId"`
	IssueReportID string    `json:"issueReportId"`
	OrderID       string    `json:"orderId"`
	SKU           string    `json:"sku"`
	FromBinID     string    `json:"fromBinId"`
	ToBinID       string    `json:"toBinId"`
	ReassignedAt  time.Time `json:"reassignedAt"`
}

func (e *LineItemReassignedEvent) EventType() string     { return "wms.picking.line-item-reassigned" }
func (e *LineItemReassignedEvent) OccurredAt() time.Time { return e.ReassignedAt }

// LineItemShortedEvent is published when no substitute bin exists
type LineItemShortedEvent struct {
	LineItemID    string    `json:"lineItemId"`
	IssueReportID string    `json:"issueReportId"`
	OrderID       string    `json:"orderId"`
	SKU           string    `json:"sku"`
	BinID         string    `json:"binId"`
	ShortedAt     time.Time `json:"shortedAt"`
}

func (e *LineItemShortedEvent) EventType() string     { return "wms.picking.line-item-shorted" }
func (e *LineItemShortedEvent) OccurredAt() time.Time { return e.ShortedAt }

// ResolutionEvents builds the events describing one resolution
func ResolutionEvents(report *IssueReport, item *OrderLineItem, inventory *InventoryRecord, task *CorrectiveTask) []DomainEvent {
	events := make([]DomainEvent, 0, 4)

	if inventory != nil {
		events = append(events, &InventoryStatusChangedEvent{
			IssueReportID: report.ID,
			SKU:           inventory.SKU,
			BinID:         inventory.BinID,
			Status:        string(inventory.Status),
			Quantity:      inventory.Quantity,
			ChangedAt:     report.CreatedAt,
		})
	}

	if task != nil {
		events = append(events, &CorrectiveTaskCreatedEvent{
			TaskID:        task.ID,
			IssueReportID: report.ID,
			OrderID:       task.OrderID,
			BinID:         task.BinID,
			SKU:           task.SKU,
			Title:         task.Title,
			Priority:      task.Priority.String(),
			AssignedTo:    task.AssignedTo,
			CreatedAt:     task.CreatedAt,
		})
	}

	if report.NextAction == NextActionAlternateBin {
		events = append(events, &LineItemReassignedEvent{
			LineItemID:    item.ID,
			IssueReportID: report.ID,
			OrderID:       item.OrderID,
			SKU:           item.SKU,
			FromBinID:     report.BinID,
			ToBinID:       report.SubstituteBinID,
			ReassignedAt:  report.CreatedAt,
		})
	} else {
		events = append(events, &LineItemShortedEvent{
			LineItemID:    item.ID,
			IssueReportID: report.ID,
			OrderID:       item.OrderID,
			SKU:           item.SKU,
			BinID:         report.BinID,
			ShortedAt:     report.CreatedAt,
		})
	}

	events = append(events, &PickIssueReportedEvent{
		IssueReportID:   report.ID,
		OrderID:         report.OrderID,
		SKU:             report.SKU,
		BinID:           report.BinID,
		IssueType:       string(report.IssueType),
		ReportedBy:      report.ReportedBy,
		DeviceID:        report.DeviceID,
		NextAction:      string(report.NextAction),
		SubstituteBinID: report.SubstituteBinID,
		ReportedAt:      report.CreatedAt,
	})

	return events
}
