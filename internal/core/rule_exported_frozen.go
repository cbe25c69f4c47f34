package core

import (
	"context"
	"fmt"

	"agroqc/pkg/domain"
)

// ExportedBatchFrozenRule blocks new checks and reports for, and edits to,
// batches that were already EXPORTED when the transaction began. Alerts may
// still be raised and resolved; shipments are governed by
// ShipmentApprovalRule.
func ExportedBatchFrozenRule() domain.Rule {
	return exportedBatchFrozenRule{}
}

type exportedBatchFrozenRule struct{}

func (exportedBatchFrozenRule) Name() string { return "exported_batches_frozen" }

func (r exportedBatchFrozenRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	updated := changedBatches(changes)

	// status at transaction start
	initial := func(code string) (domain.BatchStatus, bool) {
		if c, ok := updated[code]; ok {
			return c.before.Status, true
		}
		b, ok := view.FindBatch(code)
		return b.Status, ok
	}

	for _, change := range changes {
		if change.Entity != domain.EntityBatch || change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := change.Before.(domain.Batch)
		if !ok || before.Status != domain.BatchExported {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("batch %s is exported and can no longer change", before.Code),
			Entity:   domain.EntityBatch,
			EntityID: before.Code,
		})
	}
	for _, change := range changes {
		if change.Action != domain.ActionCreate || !frozenOnExport(change.Entity) {
			continue
		}
		code, ok := batchCodeOf(change.After)
		if !ok {
			continue
		}
		if status, found := initial(code); found && status == domain.BatchExported {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("batch %s is exported; no new %s records are accepted", code, change.Entity),
				Entity:   change.Entity,
				EntityID: recordCode(change.After),
			})
		}
	}
	return res, nil
}

// frozenOnExport reports whether creating entity is refused once its batch
// is EXPORTED.
func frozenOnExport(entity domain.EntityType) bool {
	switch entity {
	case domain.EntityInspection, domain.EntitySensorReading, domain.EntityLabTest,
		domain.EntityPackagingTest, domain.EntityQualityReport:
		return true
	}
	return false
}

func recordCode(payload any) string {
	switch v := payload.(type) {
	case Inspection:
		return v.Code
	case SensorReading:
		return v.Code
	case LabTest:
		return v.Code
	case PackagingTest:
		return v.Code
	case Alert:
		return v.Code
	case QualityReport:
		return v.Code
	case ShipmentTrace:
		return v.Code
	case Batch:
		return v.Code
	case Product:
		return v.Code
	}
	return ""
}
