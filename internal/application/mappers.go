package application

import "github.com/wms-platform/pick-issue-service/internal/domain"

// ToResolutionDTO converts a stored report to the picker-facing outcome
func ToResolutionDTO(report *domain.IssueReport) *ResolutionDTO {
	if report == nil {
		return nil
	}

	dto := &ResolutionDTO{
		PickIssueID: report.ID,
		NextAction:  string(report.NextAction),
	}
	if report.NextAction == domain.NextActionAlternateBin {
		dto.BinID = report.SubstituteBinID
	}
	return dto
}

// ToIssueReportDTO converts a domain IssueReport to IssueReportDTO
func ToIssueReportDTO(report *domain.IssueReport) *IssueReportDTO {
	if report == nil {
		return nil
	}

	return &IssueReportDTO{
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
		CreatedAt:       report.CreatedAt,
	}
}

// ToIssueReportDTOs converts a slice of reports
func ToIssueReportDTOs(reports []*domain.IssueReport) []IssueReportDTO {
	dtos := make([]IssueReportDTO, 0, len(reports))
	for _, r := range reports {
		dtos = append(dtos, *ToIssueReportDTO(r))
	}
	return dtos
}
