package core

import (
	"context"
	"fmt"

	"agroqc/pkg/domain"
)

// ReportStatusRule keeps batch status and quality report decisions in step:
// a new report must leave its batch in the status its decision maps to, and
// the decision-driven statuses are only reachable through a matching report.
func ReportStatusRule() domain.Rule {
	return reportStatusRule{}
}

type reportStatusRule struct{}

func (reportStatusRule) Name() string { return "report_status_consistency" }

func (r reportStatusRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	reports := make(map[string]domain.QualityReport)
	for _, report := range view.ListQualityReports() {
		reports[report.BatchCode] = report
	}

	for _, change := range changes {
		switch change.Entity {
		case domain.EntityQualityReport:
			report, ok := change.After.(domain.QualityReport)
			if !ok || change.Action != domain.ActionCreate {
				continue
			}
			batch, found := view.FindBatch(report.BatchCode)
			want := domain.StatusForDecision(report.Decision)
			if found && batch.Status != want {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("report %s decided %s but batch %s is %s, want %s", report.Code, report.Decision, batch.Code, batch.Status, want),
					Entity:   domain.EntityQualityReport,
					EntityID: report.Code,
				})
			}
		case domain.EntityBatch:
			before, ok1 := change.Before.(domain.Batch)
			after, ok2 := change.After.(domain.Batch)
			if !ok1 || !ok2 || before.Status == after.Status || !decisionStatus(after.Status) {
				continue
			}
			report, found := reports[after.Code]
			if found && domain.StatusForDecision(report.Decision) == after.Status {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("batch %s status %s is only set by its quality report", after.Code, after.Status),
				Entity:   domain.EntityBatch,
				EntityID: after.Code,
			})
		}
	}
	return res, nil
}

func decisionStatus(s domain.BatchStatus) bool {
	return s == domain.BatchApproved || s == domain.BatchRejected || s == domain.BatchInReview
}

// ApprovedWithActiveAlertsRule warns when a batch is approved while it still
// has unresolved alerts.
func ApprovedWithActiveAlertsRule() domain.Rule {
	return approvedWithActiveAlertsRule{}
}

type approvedWithActiveAlertsRule struct{}

func (approvedWithActiveAlertsRule) Name() string { return "approved_with_active_alerts" }

func (r approvedWithActiveAlertsRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	var active map[string]int
	for _, change := range changes {
		report, ok := change.After.(domain.QualityReport)
		if !ok || change.Action != domain.ActionCreate || report.Decision != domain.ResultApproved {
			continue
		}
		if active == nil {
			active = make(map[string]int)
			for _, a := range view.ListAlerts() {
				if a.State == domain.AlertActive {
					active[a.BatchCode]++
				}
			}
		}
		if n := active[report.BatchCode]; n > 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("batch %s approved with %d active alert(s)", report.BatchCode, n),
				Entity:   domain.EntityQualityReport,
				EntityID: report.Code,
			})
		}
	}
	return res, nil
}
