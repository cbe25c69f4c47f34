package core

import (
	"context"
	"errors"
	"testing"

	"agroqc/internal/infra/persistence/memory"
	"agroqc/pkg/domain"

	"github.com/shopspring/decimal"
)

// seedBatch stores a product and a NEW batch directly through the store.
func seedBatch(t *testing.T, store *memory.Store, code string) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateProduct(Product{Code: "PROD-" + code, Name: "Mango", Variety: "Kent"}); err != nil {
			return err
		}
		_, err := tx.CreateBatch(Batch{
			Code: code, ProductCode: "PROD-" + code, HarvestDate: harvest,
			QuantityKg: decimal.NewFromInt(500), OriginField: "Sector 4", Owner: "Agro SAC",
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed batch: %v", err)
	}
}

func blockedBy(t *testing.T, err error, rule string) {
	t.Helper()
	var rv RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected rule violation from %s, got %v", rule, err)
	}
	for _, v := range rv.Result.Violations {
		if v.Rule == rule && v.Severity == SeverityBlock {
			return
		}
	}
	t.Fatalf("expected blocking %s violation, got %+v", rule, rv.Result.Violations)
}

func setStatus(status domain.BatchStatus) func(*Batch) error {
	return func(b *Batch) error {
		b.Status = status
		return nil
	}
}

func TestBatchLifecycleRule(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewDefaultRulesEngine())
	seedBatch(t, store, "LT-1")

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateBatch("LT-1", setStatus(domain.BatchExported))
		return err
	})
	blockedBy(t, err, "batch_lifecycle")

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateBatch("LT-1", setStatus("SHIPPED"))
		return err
	})
	blockedBy(t, err, "batch_lifecycle")

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateBatch(Batch{Code: "LT-2", ProductCode: "PROD-LT-1", Status: domain.BatchApproved, QuantityKg: decimal.NewFromInt(1)})
		return err
	})
	blockedBy(t, err, "batch_lifecycle")

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateBatch("LT-1", setStatus(domain.BatchInProcess))
		return err
	}); err != nil {
		t.Fatalf("NEW to IN_PROCESS should be allowed: %v", err)
	}
}

func TestReportStatusRule(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewDefaultRulesEngine())
	seedBatch(t, store, "LT-1")

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateBatch("LT-1", setStatus(domain.BatchApproved))
		return err
	})
	blockedBy(t, err, "report_status_consistency")

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateQualityReport(QualityReport{Code: "INF-1", BatchCode: "LT-1", Decision: domain.ResultRejected, PackagingResult: domain.ResultRejected})
		return err
	})
	blockedBy(t, err, "report_status_consistency")

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateQualityReport(QualityReport{Code: "INF-1", BatchCode: "LT-1", Decision: domain.ResultRejected, PackagingResult: domain.ResultRejected}); err != nil {
			return err
		}
		_, err := tx.UpdateBatch("LT-1", setStatus(domain.BatchRejected))
		return err
	}); err != nil {
		t.Fatalf("report with matching status should commit: %v", err)
	}
}

func TestShipmentApprovalRule(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewDefaultRulesEngine())
	seedBatch(t, store, "LT-1")

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateShipmentTrace(ShipmentTrace{Code: "TRZ-1", BatchCode: "LT-1"})
		return err
	})
	blockedBy(t, err, "shipment_requires_approval")

	res, err := ShipmentApprovalRule().Evaluate(ctx, nil, []Change{
		{Entity: EntityBatch, Action: ActionUpdate,
			Before: Batch{Code: "LT-1", Status: domain.BatchApproved},
			After:  Batch{Code: "LT-1", Status: domain.BatchExported}},
		{Entity: EntityShipmentTrace, Action: ActionCreate, After: ShipmentTrace{Code: "TRZ-1", BatchCode: "LT-1"}},
	})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("export in the same change set should pass, got %+v %v", res.Violations, err)
	}
}

type stubView struct {
	batches map[string]Batch
	alerts  []Alert
	reports []QualityReport
}

func (v stubView) FindBatch(code string) (Batch, bool) {
	b, ok := v.batches[code]
	return b, ok
}
func (v stubView) ListAlerts() []Alert                 { return v.alerts }
func (v stubView) ListQualityReports() []QualityReport { return v.reports }
func (v stubView) ListShipmentTraces() []ShipmentTrace { return nil }

func TestShipmentCertificationsRule(t *testing.T) {
	view := stubView{reports: []QualityReport{{Code: "INF-1", BatchCode: "LT-1", Certifications: domain.StringList{"GlobalG.A.P.", "HACCP"}}}}
	changes := []Change{{Entity: EntityShipmentTrace, Action: ActionCreate, After: ShipmentTrace{
		Code: "TRZ-1", BatchCode: "LT-1", RequiredCerts: domain.StringList{"HACCP", "BRC"},
	}}}
	res, err := ShipmentCertificationsRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Severity != SeverityWarn || res.Violations[0].EntityID != "TRZ-1" {
		t.Fatalf("expected one warning for BRC, got %+v", res.Violations)
	}

	changes[0].After = ShipmentTrace{Code: "TRZ-2", BatchCode: "LT-1", RequiredCerts: domain.StringList{"HACCP"}}
	res, _ = ShipmentCertificationsRule().Evaluate(context.Background(), view, changes)
	if len(res.Violations) != 0 {
		t.Fatalf("covered certifications should not warn, got %+v", res.Violations)
	}
}

func TestApprovedWithActiveAlertsRule(t *testing.T) {
	view := stubView{alerts: []Alert{
		{Code: "ALT-1", BatchCode: "LT-1", State: domain.AlertActive},
		{Code: "ALT-2", BatchCode: "LT-1", State: domain.AlertResolved},
		{Code: "ALT-3", BatchCode: "LT-9", State: domain.AlertActive},
	}}
	changes := []Change{
		{Entity: EntityQualityReport, Action: ActionCreate, After: QualityReport{Code: "INF-1", BatchCode: "LT-1", Decision: domain.ResultApproved}},
		{Entity: EntityQualityReport, Action: ActionCreate, After: QualityReport{Code: "INF-2", BatchCode: "LT-2", Decision: domain.ResultApproved}},
		{Entity: EntityQualityReport, Action: ActionCreate, After: QualityReport{Code: "INF-3", BatchCode: "LT-9", Decision: domain.ResultRejected}},
	}
	res, err := ApprovedWithActiveAlertsRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].EntityID != "INF-1" {
		t.Fatalf("expected warning only for INF-1, got %+v", res.Violations)
	}
}

func TestExportedBatchFrozenRule(t *testing.T) {
	view := stubView{batches: map[string]Batch{
		"LT-1": {Code: "LT-1", Status: domain.BatchExported},
		"LT-2": {Code: "LT-2", Status: domain.BatchApproved},
	}}
	changes := []Change{
		{Entity: EntityInspection, Action: ActionCreate, After: Inspection{Code: "INS-1", BatchCode: "LT-1"}},
		{Entity: EntityBatch, Action: ActionUpdate,
			Before: Batch{Code: "LT-1", Status: domain.BatchExported, Owner: "a"},
			After:  Batch{Code: "LT-1", Status: domain.BatchExported, Owner: "b"}},
		{Entity: EntityBatch, Action: ActionUpdate,
			Before: Batch{Code: "LT-2", Status: domain.BatchApproved},
			After:  Batch{Code: "LT-2", Status: domain.BatchExported}},
		{Entity: EntityShipmentTrace, Action: ActionCreate, After: ShipmentTrace{Code: "TRZ-1", BatchCode: "LT-2"}},
		{Entity: EntityAlert, Action: ActionUpdate, After: Alert{Code: "ALT-1", BatchCode: "LT-1"}},
		{Entity: EntityAlert, Action: ActionCreate, After: Alert{Code: "ALT-2", BatchCode: "LT-1"}},
		{Entity: EntityQualityReport, Action: ActionCreate, After: QualityReport{Code: "INF-1", BatchCode: "LT-1"}},
	}
	res, err := ExportedBatchFrozenRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 3 {
		t.Fatalf("expected batch edit, inspection and report to be blocked, got %+v", res.Violations)
	}
	if res.Violations[0].EntityID != "LT-1" || res.Violations[1].EntityID != "INS-1" || res.Violations[2].EntityID != "INF-1" {
		t.Fatalf("unexpected violation order %+v", res.Violations)
	}
}

func TestChangedBatchesKeepsFirstBefore(t *testing.T) {
	changes := []Change{
		{Entity: EntityBatch, Action: ActionUpdate, Before: Batch{Code: "LT-1", Status: domain.BatchNew}, After: Batch{Code: "LT-1", Status: domain.BatchInProcess}},
		{Entity: EntityBatch, Action: ActionUpdate, Before: Batch{Code: "LT-1", Status: domain.BatchInProcess}, After: Batch{Code: "LT-1", Status: domain.BatchApproved}},
		{Entity: EntityBatch, Action: ActionCreate, After: Batch{Code: "LT-2"}},
	}
	got := changedBatches(changes)
	if len(got) != 1 || got["LT-1"].before.Status != domain.BatchNew || got["LT-1"].after.Status != domain.BatchApproved {
		t.Fatalf("unexpected changed batches %+v", got)
	}
	if code, ok := batchCodeOf(LabTest{BatchCode: "LT-3"}); !ok || code != "LT-3" {
		t.Fatalf("expected batch code from lab test")
	}
	if _, ok := batchCodeOf(Product{}); ok {
		t.Fatalf("products carry no batch")
	}
}
