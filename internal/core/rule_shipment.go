package core

import (
	"context"
	"fmt"
	"strings"

	"agroqc/pkg/domain"
)

// ShipmentApprovalRule blocks shipment traces unless the same transaction
// exports a batch that was APPROVED.
func ShipmentApprovalRule() domain.Rule {
	return shipmentApprovalRule{}
}

type shipmentApprovalRule struct{}

func (shipmentApprovalRule) Name() string { return "shipment_requires_approval" }

func (r shipmentApprovalRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	updated := changedBatches(changes)
	for _, change := range changes {
		trace, ok := change.After.(domain.ShipmentTrace)
		if !ok || change.Action != domain.ActionCreate {
			continue
		}
		c, exported := updated[trace.BatchCode]
		if exported && c.before.Status == domain.BatchApproved && c.after.Status == domain.BatchExported {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("shipment %s requires batch %s to be APPROVED and exported with it", trace.Code, trace.BatchCode),
			Entity:   domain.EntityShipmentTrace,
			EntityID: trace.Code,
		})
	}
	return res, nil
}

// ShipmentCertificationsRule warns when a shipment requires certifications
// the batch quality report does not list.
func ShipmentCertificationsRule() domain.Rule {
	return shipmentCertificationsRule{}
}

type shipmentCertificationsRule struct{}

func (shipmentCertificationsRule) Name() string { return "shipment_certifications" }

func (r shipmentCertificationsRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	var reports map[string]domain.QualityReport
	for _, change := range changes {
		trace, ok := change.After.(domain.ShipmentTrace)
		if !ok || change.Action != domain.ActionCreate || len(trace.RequiredCerts) == 0 {
			continue
		}
		if reports == nil {
			reports = make(map[string]domain.QualityReport)
			for _, report := range view.ListQualityReports() {
				reports[report.BatchCode] = report
			}
		}
		report := reports[trace.BatchCode]
		var missing []string
		for _, cert := range trace.RequiredCerts {
			if !report.Certifications.Contains(cert) {
				missing = append(missing, cert)
			}
		}
		if len(missing) == 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("shipment %s requires certifications missing from the batch report: %s", trace.Code, strings.Join(missing, ", ")),
			Entity:   domain.EntityShipmentTrace,
			EntityID: trace.Code,
		})
	}
	return res, nil
}
