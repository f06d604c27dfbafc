package application

import (
	"time"

	"github.com/wms-platform/pick-issue-service/pkg/api"
)

// ResolutionDTO is the outcome returned to the picker
type ResolutionDTO struct {
	PickIssueID string `json:"pickIssueId"`
	NextAction  string `json:"nextAction"`
	BinID       string `json:"binId,omitempty"`
}

// IssueReportDTO represents an issue report in responses
type IssueReportDTO struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"orderId"`
	SKU             string     `json:"sku"`
	BinID           string     `json:"binId"`
	IssueType       string     `json:"issueType"`
	ReportedBy      string     `json:"reportedBy"`
	DeviceID        string     `json:"deviceId,omitempty"`
	ClientTimestamp *time.Time `json:"clientTimestamp,omitempty"`
	NextAction      string     `json:"nextAction"`
	SubstituteBinID string     `json:"substituteBinId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// IssueReportPage is one page of issue reports, newest first
type IssueReportPage = api.OffsetPage[IssueReportDTO]
