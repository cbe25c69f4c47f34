package core

import "agroqc/pkg/domain"

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(BatchLifecycleRule())
	engine.Register(ExportedBatchFrozenRule())
	engine.Register(ReportStatusRule())
	engine.Register(ShipmentApprovalRule())
	engine.Register(ApprovedWithActiveAlertsRule())
	engine.Register(ShipmentCertificationsRule())
	return engine
}

// changedBatches returns the batch updates of a change set keyed by code. The
// first Before and last After win when a batch changes more than once.
func changedBatches(changes []Change) map[string]struct{ before, after Batch } {
	out := make(map[string]struct{ before, after Batch })
	for _, c := range changes {
		if c.Entity != EntityBatch || c.Action != ActionUpdate {
			continue
		}
		before, ok1 := c.Before.(Batch)
		after, ok2 := c.After.(Batch)
		if !ok1 || !ok2 {
			continue
		}
		entry, seen := out[after.Code]
		if !seen {
			entry.before = before
		}
		entry.after = after
		out[after.Code] = entry
	}
	return out
}

// batchCodeOf extracts the batch reference of a child record payload.
func batchCodeOf(payload any) (string, bool) {
	switch v := payload.(type) {
	case Inspection:
		return v.BatchCode, true
	case SensorReading:
		return v.BatchCode, true
	case LabTest:
		return v.BatchCode, true
	case PackagingTest:
		return v.BatchCode, true
	case Alert:
		return v.BatchCode, true
	case QualityReport:
		return v.BatchCode, true
	case ShipmentTrace:
		return v.BatchCode, true
	}
	return "", false
}
