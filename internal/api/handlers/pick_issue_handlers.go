package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/pick-issue-service/internal/application"
	"github.com/wms-platform/pick-issue-service/pkg/api"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/middleware"
	"github.com/wms-platform/pick-issue-service/pkg/tracing"
)

// PickIssueService is the application surface the handlers call
type PickIssueService interface {
	ResolveIssue(ctx context.Context, cmd application.ResolveIssueCommand) (*application.ResolutionDTO, error)
	GetIssueReport(ctx context.Context, query application.GetIssueReportQuery) (*application.IssueReportDTO, error)
	ListIssueReports(ctx context.Context, query application.ListIssueReportsQuery) (*application.IssueReportPage, error)
}

// PickIssueHandlers serves the pick issue endpoints
type PickIssueHandlers struct {
	service PickIssueService
	logger  *logging.Logger
}

func NewPickIssueHandlers(service PickIssueService, logger *logging.Logger) *PickIssueHandlers {
	return &PickIssueHandlers{service: service, logger: logger}
}

// RegisterRoutes mounts the endpoints on group, which must run middleware.RequireUser
func (h *PickIssueHandlers) RegisterRoutes(group *gin.RouterGroup) {
	issues := group.Group("/pick-issues")
	issues.POST("", h.ResolveIssue)
	issues.GET("", h.ListIssueReports)
	issues.GET("/:issueId", h.GetIssueReport)
}

// ResolveIssueRequest is the picker's report. Fields are checked for presence
// here and fully validated by the resolver.
type ResolveIssueRequest struct {
	OrderID   string `json:"orderId" binding:"required,notblank"`
	SKU       string `json:"sku" binding:"required,notblank"`
	BinID     string `json:"binId" binding:"required,notblank"`
	IssueType string `json:"issueType" binding:"required,issuetype"`
	DeviceID  string `json:"deviceId"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse wraps every successful payload
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ResolveIssue handles POST /pick-issues
func (h *PickIssueHandlers) ResolveIssue(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	var req ResolveIssueRequest
	if appErr := api.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	clientTimestamp, err := parseTimestamp(req.Timestamp)
	if err != nil {
		responder.RespondValidationError("invalid timestamp", map[string]string{
			"timestamp": "timestamp must be an RFC 3339 date-time",
		})
		return
	}

	deviceID := req.DeviceID
	if strings.TrimSpace(deviceID) == "" {
		deviceID = middleware.GetDeviceID(c)
	}

	middleware.SpanAttributes(c,
		append(tracing.PickIssueSpanAttributes(req.OrderID, req.SKU, req.BinID, req.IssueType),
			attribute.String("wms.picker.id", middleware.GetUserID(c)),
			attribute.String("wms.picker.device_id", deviceID),
		)...,
	)

	dto, err := h.service.ResolveIssue(c.Request.Context(), application.ResolveIssueCommand{
		OrderID:         req.OrderID,
		SKU:             req.SKU,
		BinID:           req.BinID,
		IssueType:       req.IssueType,
		ReporterID:      middleware.GetUserID(c),
		DeviceID:        deviceID,
		ClientTimestamp: clientTimestamp,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: dto})
}

// GetIssueReport handles GET /pick-issues/:issueId
func (h *PickIssueHandlers) GetIssueReport(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	issueID := c.Param("issueId")
	middleware.SpanAttributes(c, attribute.String("wms.pick_issue.id", issueID))

	report, err := h.service.GetIssueReport(c.Request.Context(), application.GetIssueReportQuery{ID: issueID})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: report})
}

// ListIssueReports handles GET /pick-issues
func (h *PickIssueHandlers) ListIssueReports(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, h.logger.Logger)

	page := api.ParseOffsetPagination(c)
	query := application.ListIssueReportsQuery{
		OrderID: strings.TrimSpace(c.Query("orderId")),
		SKU:     strings.TrimSpace(c.Query("sku")),
		BinID:   strings.TrimSpace(c.Query("binId")),
		Limit:   page.Limit,
		Offset:  page.Offset,
	}

	result, err := h.service.ListIssueReports(c.Request.Context(), query)
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: result})
}

// parseTimestamp accepts an empty value or an RFC 3339 date-time
func parseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
