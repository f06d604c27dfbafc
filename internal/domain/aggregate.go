package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrInvalidIssueType        = errors.New("invalid issue type")
	ErrMissingField            = errors.New("required field is missing")
	ErrOrderLineItemNotFound   = errors.New("order line item not found")
	ErrInventoryRecordNotFound = errors.New("inventory record not found")
	ErrIssueReportNotFound     = errors.New("issue report not found")
)

// IssueType classifies why a picker could not retrieve an item
type IssueType string

const (
	IssueTypeItemDamaged IssueType = "ITEM_DAMAGED"
	IssueTypeItemMissing IssueType = "ITEM_MISSING"
	IssueTypeItemExpired IssueType = "ITEM_EXPIRED"
	IssueTypeWrongItem   IssueType = "WRONG_ITEM"
)

// ParseIssueType validates s against the known issue types
func ParseIssueType(s string) (IssueType, error) {
	t := IssueType(strings.TrimSpace(s))
	if _, ok := policies[t]; !ok {
		return "", ErrInvalidIssueType
	}
	return t, nil
}

// InventoryStatus is the condition of the stock held in a bin
type InventoryStatus string

const (
	InventoryStatusAvailable InventoryStatus = "available"
	InventoryStatusDamaged   InventoryStatus = "damaged"
	InventoryStatusExpired   InventoryStatus = "expired"
	InventoryStatusBlocked   InventoryStatus = "blocked"
	InventoryStatusReserved  InventoryStatus = "reserved"
)

// PickStatus is the pick progress of an order line item
type PickStatus string

const (
	PickStatusPending    PickStatus = "pending"
	PickStatusFound      PickStatus = "found"
	PickStatusNotFound   PickStatus = "not_found"
	PickStatusScanned    PickStatus = "scanned"
	PickStatusCompleted  PickStatus = "completed"
	PickStatusPicked     PickStatus = "picked"
	PickStatusShort      PickStatus = "short"
	PickStatusOnHold     PickStatus = "on_hold"
	PickStatusReassigned PickStatus = "reassigned"
)

// TaskStatus is the lifecycle state of a corrective task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// NextAction tells the picker how to continue after an issue
type NextAction string

const (
	NextActionAlternateBin NextAction = "ALTERNATE_BIN"
	NextActionSkipItem     NextAction = "SKIP_ITEM"
)

// IssueReport is the immutable audit record of one reported pick issue
type IssueReport struct {
	ID              string     `bson:"_id" json:"id"`
	OrderID         string     `bson:"orderId" json:"orderId"`
	SKU             string     `bson:"sku" json:"sku"`
	BinID           string     `bson:"binId" json:"binId"`
	IssueType       IssueType  `bson:"issueType" json:"issueType"`
	ReportedBy      string     `bson:"reportedBy" json:"reportedBy"`
	DeviceID        string     `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	ClientTimestamp *time.Time `bson:"clientTimestamp,omitempty" json:"clientTimestamp,omitempty"`
	NextAction      NextAction `bson:"nextAction" json:"nextAction"`
	SubstituteBinID string     `bson:"substituteBinId,omitempty" json:"substituteBinId,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
}

// NewIssueReport builds the report for a resolved issue. createdAt is the server clock.
func NewIssueReport(id string, issue Issue, next NextAction, substituteBinID string, createdAt time.Time) *IssueReport {
	if id == "" {
		id = uuid.New().String()
	}
	if next != NextActionAlternateBin {
		substituteBinID = ""
	}

	return &IssueReport{
		ID:              id,
		OrderID:         issue.OrderID,
		SKU:             issue.SKU,
		BinID:           issue.BinID,
		IssueType:       issue.Type,
		ReportedBy:      issue.ReporterID,
		DeviceID:        issue.DeviceID,
		ClientTimestamp: issue.ClientTimestamp,
		NextAction:      next,
		SubstituteBinID: substituteBinID,
		CreatedAt:       createdAt,
	}
}

// Issue is a validated pick issue as submitted by a picker
type Issue struct {
	OrderID         string
	SKU             string
	BinID           string
	Type            IssueType
	ReporterID      string
	DeviceID        string
	ClientTimestamp *time.Time
}

// FieldError names an invalid input field
type FieldError struct {
	Field  string
	Reason error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Reason
}

// ValidationErrors collects every invalid field of an issue
type ValidationErrors []*FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v))
	for _, fe := range v {
		errs = append(errs, fe)
	}
	return errs
}

// Fields returns the failures keyed by field name
func (v ValidationErrors) Fields() map[string]string {
	fields := make(map[string]string, len(v))
	for _, fe := range v {
		fields[fe.Field] = fe.Reason.Error()
	}
	return fields
}

// NewIssue trims and validates the submitted fields
func NewIssue(orderID, sku, binID, issueType, reporterID, deviceID string, clientTimestamp *time.Time) (Issue, error) {
	issue := Issue{
		OrderID:         strings.TrimSpace(orderID),
		SKU:             strings.TrimSpace(sku),
		BinID:           strings.TrimSpace(binID),
		ReporterID:      strings.TrimSpace(reporterID),
		DeviceID:        strings.TrimSpace(deviceID),
		ClientTimestamp: clientTimestamp,
	}

	var errs ValidationErrors
	required := []struct {
		field string
		value string
	}{
		{"orderId", issue.OrderID},
		{"sku", issue.SKU},
		{"binId", issue.BinID},
		{"issueType", strings.TrimSpace(issueType)},
		{"reporterId", issue.ReporterID},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, &FieldError{Field: r.field, Reason: ErrMissingField})
		}
	}

	if strings.TrimSpace(issueType) != "" {
		t, err := ParseIssueType(issueType)
		if err != nil {
			errs = append(errs, &FieldError{Field: "issueType", Reason: err})
		}
		issue.Type = t
	}

	if len(errs) > 0 {
		return Issue{}, errs
	}
	return issue, nil
}

// InventoryRecord is the stock of one SKU in one bin; (SKU, BinID) is unique
type InventoryRecord struct {
	SKU         string          `bson:"sku" json:"sku"`
	BinID       string          `bson:"binId" json:"binId"`
	Quantity    int             `bson:"quantity" json:"quantity"`
	Status      InventoryStatus `bson:"status" json:"status"`
	ExpiryDate  *time.Time      `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	BatchNumber string          `bson:"batchNumber,omitempty" json:"batchNumber,omitempty"`
	UpdatedAt   time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// ApplyMutation sets the status and decrements the quantity, never below zero
func (r *InventoryRecord) ApplyMutation(m InventoryMutation, now time.Time) {
	if m.IsZero() {
		return
	}
	if m.SetStatus != "" {
		r.Status = m.SetStatus
	}
	r.Quantity -= m.Decrement
	if r.Quantity < 0 {
		r.Quantity = 0
	}
	r.UpdatedAt = now
}

// IsUsable reports whether the record can serve picks
func (r *InventoryRecord) IsUsable() bool {
	return r.Status == InventoryStatusAvailable && r.Quantity > 0
}

// OrderLineItem is one SKU's pick requirement within an order
type OrderLineItem struct {
	ID        string     `bson:"_id" json:"id"`
	OrderID   string     `bson:"orderId" json:"orderId"`
	SKU       string     `bson:"sku" json:"sku"`
	Name      string     `bson:"name" json:"name"`
	Quantity  int        `bson:"quantity" json:"quantity"`
	Category  string     `bson:"category" json:"category"`
	Status    PickStatus `bson:"status" json:"status"`
	Location  string     `bson:"location,omitempty" json:"location,omitempty"`
	Notes     string     `bson:"notes,omitempty" json:"notes,omitempty"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// ApplyResolution moves the line item to the outcome of an issue
func (i *OrderLineItem) ApplyResolution(next NextAction, binID string, now time.Time) {
	switch next {
	case NextActionAlternateBin:
		i.Status = PickStatusReassigned
		i.Location = binID
	default:
		i.Status = PickStatusShort
	}
	i.UpdatedAt = now
}

// CorrectiveTask is follow-up work for warehouse staff after a bin discrepancy
type CorrectiveTask struct {
	ID            string       `bson:"_id" json:"id"`
	Title         string       `bson:"title" json:"title"`
	Description   string       `bson:"description" json:"description"`
	AssignedTo    string       `bson:"assignedTo" json:"assignedTo"`
	OrderID       string       `bson:"orderId" json:"orderId"`
	BinID         string       `bson:"binId" json:"binId"`
	SKU           string       `bson:"sku" json:"sku"`
	IssueReportID string       `bson:"issueReportId" json:"issueReportId"`
	Status        TaskStatus   `bson:"status" json:"status"`
	Priority      TaskPriority `bson:"priority" json:"priority"`
	CreatedAt     time.Time    `bson:"createdAt" json:"createdAt"`
}

// NewCorrectiveTask renders a task from its template; the reporter is the assignee
func NewCorrectiveTask(tmpl TaskTemplate, issue Issue, issueReportID string, now time.Time) *CorrectiveTask {
	return &CorrectiveTask{
		ID:            uuid.New().String(),
		Title:         tmpl.Title(issue.BinID),
		Description:   tmpl.Description(issue),
		AssignedTo:    issue.ReporterID,
		OrderID:       issue.OrderID,
		BinID:         issue.BinID,
		SKU:           issue.SKU,
		IssueReportID: issueReportID,
		Status:        TaskStatusPending,
		Priority:      tmpl.Priority,
		CreatedAt:     now,
	}
}
