package application

import "time"

// ResolveIssueCommand represents a picker's report that an item could not be picked
type ResolveIssueCommand struct {
	OrderID   string
	SKU       string
	BinID     string
	IssueType string
	// ReporterID comes from the authenticated session, never the request body
	ReporterID      string
	DeviceID        string
	ClientTimestamp *time.Time
}

// GetIssueReportQuery represents the query to get one issue report
type GetIssueReportQuery struct {
	ID string
}

// ListIssueReportsQuery represents the query to list issue reports
type ListIssueReportsQuery struct {
	OrderID string
	SKU     string
	BinID   string
	Limit   int
	Offset  int
}
