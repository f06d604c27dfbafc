package application

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/pick-issue-service/internal/domain"
	"github.com/wms-platform/pick-issue-service/pkg/api"
	"github.com/wms-platform/pick-issue-service/pkg/errors"
	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/metrics"
	"github.com/wms-platform/pick-issue-service/pkg/resilience"
	"github.com/wms-platform/pick-issue-service/pkg/tracing"
)

// PickIssueApplicationService resolves pick issues and serves the issue audit log
type PickIssueApplicationService struct {
	tx      domain.TransactionRunner
	reports domain.IssueReportRepository
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPickIssueApplicationService creates a new PickIssueApplicationService. m may be nil.
func NewPickIssueApplicationService(
	tx domain.TransactionRunner,
	reports domain.IssueReportRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
) *PickIssueApplicationService {
	return &PickIssueApplicationService{
		tx:      tx,
		reports: reports,
		logger:  logger.WithComponent("pick-issue-service"),
		metrics: m,
		now:     time.Now,
	}
}

// resolution is everything one resolveIssue call changed
type resolution struct {
	report    *domain.IssueReport
	lineItem  *domain.OrderLineItem
	inventory *domain.InventoryRecord
	task      *domain.CorrectiveTask

	inventoryMissing bool
}

// ResolveIssue classifies a pick issue, applies its side effects and finds a substitute bin.
// All writes share one transaction; the line item lookup happens before any write.
func (s *PickIssueApplicationService) ResolveIssue(ctx context.Context, cmd ResolveIssueCommand) (dto *ResolutionDTO, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "PickIssueService.ResolveIssue",
		tracing.PickIssueSpanAttributes(cmd.OrderID, cmd.SKU, cmd.BinID, cmd.IssueType)...)
	defer func() { tracing.EndSpan(span, err) }()

	issue, err := domain.NewIssue(cmd.OrderID, cmd.SKU, cmd.BinID, cmd.IssueType, cmd.ReporterID, cmd.DeviceID, cmd.ClientTimestamp)
	if err != nil {
		return nil, validationError(err)
	}
	policy, _ := domain.PolicyFor(issue.Type)

	var res *resolution
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		r, err := s.resolve(ctx, uow, issue, policy)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		appErr := s.mapResolveError(err, issue)
		log := s.logger.WithContext(ctx).WithError(err)
		if appErr.IsClientError() {
			log.Warn("Pick issue rejected", "orderId", issue.OrderID, "sku", issue.SKU, "code", appErr.Code)
		} else {
			log.Error("Failed to resolve pick issue", "orderId", issue.OrderID, "sku", issue.SKU, "binId", issue.BinID)
		}
		return nil, appErr
	}

	s.record(ctx, issue, res, time.Since(start))
	return ToResolutionDTO(res.report), nil
}

func (s *PickIssueApplicationService) resolve(ctx context.Context, uow domain.UnitOfWork, issue domain.Issue, policy domain.ResolutionPolicy) (*resolution, error) {
	now := s.now().UTC().Truncate(time.Millisecond)

	item, err := uow.LineItems().FindByOrderAndSKU(ctx, issue.OrderID, issue.SKU)
	if err != nil {
		if stderrors.Is(err, domain.ErrOrderLineItemNotFound) {
			return nil, err
		}
		return nil, errors.ErrPersistence("find order line item", err)
	}

	res := &resolution{lineItem: item}
	reportID := uuid.New().String()

	if !policy.Mutation.IsZero() {
		record, err := uow.Inventory().ApplyMutation(ctx, issue.SKU, issue.BinID, policy.Mutation)
		switch {
		case stderrors.Is(err, domain.ErrInventoryRecordNotFound):
			res.inventoryMissing = true
		case err != nil:
			return nil, errors.ErrPersistence("update inventory", err)
		default:
			res.inventory = record
		}
	}

	if policy.Task != nil {
		task := domain.NewCorrectiveTask(*policy.Task, issue, reportID, now)
		if err := uow.Tasks().Create(ctx, task); err != nil {
			return nil, errors.ErrPersistence("create corrective task", err)
		}
		res.task = task
	}

	substitute, err := uow.Inventory().FindSubstitute(ctx, domain.NewSubstituteQuery(issue, policy.Substitute, now))
	if err != nil {
		return nil, errors.ErrPersistence("search substitute bin", err)
	}
	next, binID := domain.Decide(substitute)

	item.ApplyResolution(next, binID, now)
	if err := uow.LineItems().UpdateResolution(ctx, item); err != nil {
		return nil, errors.ErrPersistence("update order line item", err)
	}

	res.report = domain.NewIssueReport(reportID, issue, next, binID, now)
	if err := uow.Reports().Create(ctx, res.report); err != nil {
		return nil, errors.ErrPersistence("create issue report", err)
	}

	events := domain.ResolutionEvents(res.report, item, res.inventory, res.task)
	if err := uow.Events().Record(ctx, res.report.ID, issue.OrderID, events...); err != nil {
		return nil, errors.ErrPersistence("record events", err)
	}

	return res, nil
}

func (s *PickIssueApplicationService) mapResolveError(err error, issue domain.Issue) *errors.AppError {
	switch {
	case stderrors.Is(err, domain.ErrOrderLineItemNotFound):
		return errors.ErrNotFound("order line item").
			WithDetail("orderId", issue.OrderID).
			WithDetail("sku", issue.SKU).
			Wrap(err)
	case stderrors.Is(err, resilience.ErrCircuitOpen):
		return errors.ErrServiceUnavailable("storage").Wrap(err)
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	return errors.ErrPersistence("resolve pick issue", err)
}

func (s *PickIssueApplicationService) record(ctx context.Context, issue domain.Issue, res *resolution, elapsed time.Duration) {
	report := res.report

	// Logged after commit; the transaction body may run more than once
	if res.inventoryMissing {
		s.logger.WithContext(ctx).Warn("No inventory record for reported bin",
			"sku", issue.SKU,
			"binId", issue.BinID,
			"issueType", issue.Type,
		)
	}

	details := map[string]any{
		"issueReportId": report.ID,
		"orderId":       report.OrderID,
		"sku":           report.SKU,
		"binId":         report.BinID,
		"issueType":     report.IssueType,
		"nextAction":    report.NextAction,
	}
	if report.SubstituteBinID != "" {
		details["substituteBinId"] = report.SubstituteBinID
	}
	if res.task != nil {
		details["correctiveTaskId"] = res.task.ID
	}
	if res.inventory != nil {
		details["inventoryStatus"] = res.inventory.Status
		details["inventoryQuantity"] = res.inventory.Quantity
	}

	s.logger.Event(ctx, "pick_issue.resolved", details)
	s.logger.Audit(ctx, "resolve", "pickIssue", report.ID, issue.ReporterID, map[string]any{
		"deviceId":  issue.DeviceID,
		"issueType": report.IssueType,
	})

	if s.metrics == nil {
		return
	}
	s.metrics.RecordPickIssue(string(report.IssueType), string(report.NextAction), elapsed)
	if res.inventory != nil {
		s.metrics.RecordInventoryMutation(string(res.inventory.Status))
	}
	if res.task != nil {
		s.metrics.RecordCorrectiveTask(res.task.Priority.String())
	}
	if report.NextAction == domain.NextActionSkipItem {
		s.metrics.RecordSubstituteNotFound(string(report.IssueType))
	}
}

// GetIssueReport retrieves an issue report by ID
func (s *PickIssueApplicationService) GetIssueReport(ctx context.Context, query GetIssueReportQuery) (*IssueReportDTO, error) {
	id := strings.TrimSpace(query.ID)
	if id == "" {
		return nil, errors.ErrValidationWithFields("validation failed", map[string]string{"issueId": "issueId is required"})
	}

	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, domain.ErrIssueReportNotFound) {
			return nil, errors.ErrNotFoundWithID("issue report", id)
		}
		s.logger.WithContext(ctx).WithError(err).Error("Failed to get issue report", "issueReportId", id)
		return nil, errors.ErrPersistence("get issue report", err)
	}

	return ToIssueReportDTO(report), nil
}

// ListIssueReports lists issue reports newest first
func (s *PickIssueApplicationService) ListIssueReports(ctx context.Context, query ListIssueReportsQuery) (*IssueReportPage, error) {
	limit := query.Limit
	if limit < 1 {
		limit = api.DefaultLimit
	}
	if limit > api.MaxLimit {
		limit = api.MaxLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	filter := domain.IssueReportFilter{
		OrderID: strings.TrimSpace(query.OrderID),
		SKU:     strings.TrimSpace(query.SKU),
		BinID:   strings.TrimSpace(query.BinID),
	}

	reports, total, err := s.reports.List(ctx, filter, limit, offset)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list issue reports", "orderId", filter.OrderID)
		return nil, errors.ErrPersistence("list issue reports", err)
	}

	page := api.NewOffsetPage(ToIssueReportDTOs(reports), total, limit, offset)
	return &page, nil
}

func validationError(err error) *errors.AppError {
	var verrs domain.ValidationErrors
	if stderrors.As(err, &verrs) {
		return errors.ErrValidationWithFields("validation failed", verrs.Fields()).Wrap(err)
	}
	return errors.ErrValidation(err.Error()).Wrap(err)
}
