package cloudevents

import (
	"time"
)

// Event types emitted by the pick-issue service
const (
	PickIssueReported      = "wms.picking.issue-reported"
	CorrectiveTaskCreated  = "wms.picking.corrective-task-created"
	LineItemReassigned     = "wms.picking.line-item-reassigned"
	LineItemShorted        = "wms.picking.line-item-shorted"
	InventoryStatusChanged = "wms.inventory.status-changed"
)

// SourcePickIssue is the CloudEvents source of this service
const SourcePickIssue = "/wms/pick-issue-service"

// CloudEvents extension attribute names, also used as ce- Kafka headers
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtOrderID       = "wmsorderid"
	ExtTraceParent   = "traceparent"
	ExtTraceState    = "tracestate"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event for WMS
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion" bson:"specversion"`
	Type            string      `json:"type" bson:"type"`
	Source          string      `json:"source" bson:"source"`
	Subject         string      `json:"subject,omitempty" bson:"subject,omitempty"`
	ID              string      `json:"id" bson:"id"`
	Time            time.Time   `json:"time" bson:"time"`
	DataContentType string      `json:"datacontenttype" bson:"datacontenttype"`
	Data            interface{} `json:"data" bson:"data"`

	CorrelationID string `json:"wmscorrelationid,omitempty" bson:"wmscorrelationid,omitempty"`
	OrderID       string `json:"wmsorderid,omitempty" bson:"wmsorderid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty" bson:"traceparent,omitempty"`
	TraceState    string `json:"tracestate,omitempty" bson:"tracestate,omitempty"`
}

// Headers returns the binary-mode CloudEvents headers for the event
func (e *WMSCloudEvent) Headers() map[string]string {
	headers := map[string]string{
		"ce-specversion": e.SpecVersion,
		"ce-type":        e.Type,
		"ce-source":      e.Source,
		"ce-id":          e.ID,
		"ce-time":        e.Time.Format(time.RFC3339),
		"content-type":   e.DataContentType,
	}

	optional := map[string]string{
		"ce-subject":             e.Subject,
		"ce-" + ExtCorrelationID: e.CorrelationID,
		"ce-" + ExtOrderID:       e.OrderID,
		"ce-" + ExtTraceParent:   e.TraceParent,
		"ce-" + ExtTraceState:    e.TraceState,
	}
	for k, v := range optional {
		if v != "" {
			headers[k] = v
		}
	}

	return headers
}
