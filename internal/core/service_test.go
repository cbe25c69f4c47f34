package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"agroqc/internal/codegen"
	"agroqc/pkg/domain"

	"github.com/shopspring/decimal"
)

var harvest = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func mustProductAndBatch(t *testing.T, svc *Service) (Product, Batch) {
	t.Helper()
	ctx := context.Background()
	product, _, err := svc.CreateProduct(ctx, Product{Name: "Green asparagus", Variety: "UC-157", OriginField: "Field A"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	batch, _, err := svc.CreateBatch(ctx, Batch{
		ProductCode: product.Code,
		HarvestDate: harvest,
		QuantityKg:  decimal.NewFromInt(1200),
		OriginField: "Field A",
		Owner:       "Coop Norte",
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return product, batch
}

func recordPassingChecks(t *testing.T, svc *Service, batchCode string) {
	t.Helper()
	ctx := context.Background()
	if _, _, err := svc.RecordInspection(ctx, Inspection{BatchCode: batchCode, Inspector: "Ana", ConformityPct: 95, ProcessingMinutes: 30}); err != nil {
		t.Fatalf("record inspection: %v", err)
	}
	if _, _, err := svc.RecordLabTest(ctx, LabTest{BatchCode: batchCode, Analyst: "Luis", PesticideResidue: "Not Detected", Microbiology: "negative"}); err != nil {
		t.Fatalf("record lab test: %v", err)
	}
	if _, _, err := svc.RecordPackagingTest(ctx, PackagingTest{BatchCode: batchCode, ContainerType: "box", Material: "cardboard", SealPassed: true, ResistancePassed: true, CompatibilityPassed: true}); err != nil {
		t.Fatalf("record packaging test: %v", err)
	}
	if _, _, err := svc.RecordSensorReading(ctx, SensorReading{BatchCode: batchCode, TemperatureC: 4, HumidityPct: 90, PH: 6, SensorState: domain.SensorOperational}); err != nil {
		t.Fatalf("record sensor reading: %v", err)
	}
}

func TestEndToEndApprovalAndExport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	product, batch := mustProductAndBatch(t, svc)

	if !codegen.Match(EntityProduct, product.Code) || !codegen.Match(EntityBatch, batch.Code) {
		t.Fatalf("unexpected generated codes %s %s", product.Code, batch.Code)
	}
	if batch.Status != domain.BatchNew {
		t.Fatalf("expected NEW batch, got %s", batch.Status)
	}

	recordPassingChecks(t, svc, batch.Code)
	got, err := svc.GetBatch(ctx, batch.Code)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if got.Status != domain.BatchInProcess {
		t.Fatalf("expected IN_PROCESS after checks, got %s", got.Status)
	}

	report, res, err := svc.GenerateQualityReport(ctx, ReportRequest{
		BatchCode:      batch.Code,
		Certifications: []string{"GlobalG.A.P.", " ", "GlobalG.A.P."},
		Destination:    "Rotterdam",
		Approver:       "QA lead",
	})
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
	if report.Decision != domain.ResultApproved || report.QualityPct != domain.QualityPctApproved {
		t.Fatalf("expected APPROVED/95, got %s/%v", report.Decision, report.QualityPct)
	}
	if report.PackagingResult != domain.ResultApproved || report.SensorStatus != domain.SensorNormal {
		t.Fatalf("unexpected upstream results %+v", report)
	}
	if len(report.Certifications) != 1 {
		t.Fatalf("expected deduplicated certifications, got %v", report.Certifications)
	}

	eligible, err := svc.ListShipmentEligibleBatches(ctx)
	if err != nil {
		t.Fatalf("eligible batches: %v", err)
	}
	if len(eligible) != 1 || eligible[0].Code != batch.Code || eligible[0].Status != domain.BatchApproved {
		t.Fatalf("expected approved batch to be eligible, got %+v", eligible)
	}

	trace, res, err := svc.CreateShipmentTrace(ctx, ShipmentTrace{
		BatchCode:          batch.Code,
		DestinationCountry: "Netherlands",
		Client:             "Fresh BV",
		RequiredCerts:      domain.StringList{"GlobalG.A.P."},
		ContainerNumber:    "MSKU1234567",
		ShipDate:           harvest.AddDate(0, 0, 3),
		Port:               "Callao",
		Documents:          domain.StringList{"invoice", "phytosanitary"},
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("unexpected shipment violations %+v", res.Violations)
	}
	if trace.State != domain.ShipmentPreparation {
		t.Fatalf("expected PREPARATION, got %s", trace.State)
	}
	got, _ = svc.GetBatch(ctx, batch.Code)
	if got.Status != domain.BatchExported {
		t.Fatalf("expected EXPORTED, got %s", got.Status)
	}

	if _, _, err := svc.AdvanceShipment(ctx, trace.Code, domain.ShipmentShipped); err != nil {
		t.Fatalf("advance shipment: %v", err)
	}
	if _, _, err := svc.AdvanceShipment(ctx, trace.Code, domain.ShipmentPreparation); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition moving shipment back, got %v", err)
	}

	_, _, err = svc.RecordInspection(ctx, Inspection{BatchCode: batch.Code, Inspector: "Ana", ConformityPct: 99})
	var rv RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected exported batch to reject new inspections, got %v", err)
	}

	// Alerts stay open on exported batches: a container can still report a breach.
	alert, _, err := svc.RaiseAlert(ctx, Alert{
		BatchCode: batch.Code, Type: "MANUAL", Level: domain.AlertHigh, Message: "reefer unit failure", Parameter: "temperature_c",
	})
	if err != nil {
		t.Fatalf("raise alert on exported batch: %v", err)
	}
	if _, _, err := svc.ResolveAlert(ctx, alert.Code, "unit replaced at port"); err != nil {
		t.Fatalf("resolve alert on exported batch: %v", err)
	}

	history, err := svc.BatchHistory(ctx, batch.Code)
	if err != nil {
		t.Fatalf("batch history: %v", err)
	}
	if history.Product == nil || history.Product.Code != product.Code || history.Report == nil ||
		len(history.Inspections) != 1 || len(history.Shipments) != 1 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestReportDecisionDrivesBatchStatus(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name       string
		conformity float64
		packaging  domain.CheckResult
		decision   domain.CheckResult
		pct        float64
		status     domain.BatchStatus
	}{
		{"observed inspection is pending", 80, domain.ResultApproved, domain.ResultPending, domain.QualityPctPending, domain.BatchInReview},
		{"rejected inspection", 50, domain.ResultApproved, domain.ResultRejected, domain.QualityPctRejected, domain.BatchRejected},
		{"rejected packaging choice", 95, domain.ResultRejected, domain.ResultRejected, domain.QualityPctRejected, domain.BatchRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t)
			_, batch := mustProductAndBatch(t, svc)
			if _, _, err := svc.RecordInspection(ctx, Inspection{BatchCode: batch.Code, Inspector: "Ana", ConformityPct: tc.conformity}); err != nil {
				t.Fatalf("record inspection: %v", err)
			}
			report, _, err := svc.GenerateQualityReport(ctx, ReportRequest{
				BatchCode: batch.Code, PackagingResult: tc.packaging, Destination: "Miami", Approver: "QA",
			})
			if err != nil {
				t.Fatalf("generate report: %v", err)
			}
			if report.Decision != tc.decision || report.QualityPct != tc.pct {
				t.Fatalf("expected %s/%v, got %s/%v", tc.decision, tc.pct, report.Decision, report.QualityPct)
			}
			if report.LabResult != domain.ResultPending {
				t.Fatalf("missing lab test should be PENDING, got %s", report.LabResult)
			}
			got, _ := svc.GetBatch(ctx, batch.Code)
			if got.Status != tc.status {
				t.Fatalf("expected batch %s, got %s", tc.status, got.Status)
			}
		})
	}
}

func TestReportWithoutReadingsStaysPending(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, batch := mustProductAndBatch(t, svc)
	if _, _, err := svc.RecordInspection(ctx, Inspection{BatchCode: batch.Code, Inspector: "Ana", ConformityPct: 95}); err != nil {
		t.Fatalf("record inspection: %v", err)
	}
	if _, _, err := svc.RecordLabTest(ctx, LabTest{BatchCode: batch.Code, Analyst: "Luis", PesticideResidue: "within limits", Microbiology: "negative"}); err != nil {
		t.Fatalf("record lab: %v", err)
	}
	report, _, err := svc.GenerateQualityReport(ctx, ReportRequest{BatchCode: batch.Code, PackagingResult: domain.ResultApproved, Destination: "Miami", Approver: "QA"})
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}
	if report.SensorStatus != domain.SensorAlert || report.Decision != domain.ResultPending {
		t.Fatalf("expected ALERT sensors and PENDING decision, got %s %s", report.SensorStatus, report.Decision)
	}
}

func TestSecondReportConflicts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, batch := mustProductAndBatch(t, svc)
	req := ReportRequest{BatchCode: batch.Code, PackagingResult: domain.ResultPending, Destination: "Miami", Approver: "QA"}
	if _, _, err := svc.GenerateQualityReport(ctx, req); err != nil {
		t.Fatalf("first report: %v", err)
	}
	_, _, err := svc.GenerateQualityReport(ctx, req)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var ce domain.ConflictError
	if !errors.As(err, &ce) || ce.Retryable() {
		t.Fatalf("duplicate report must not be retryable: %v", err)
	}
}

func TestCodeCollisionIsRetryableConflict(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	p := Product{Code: "PROD-20240506-AAAAAA", Name: "Mango", Variety: "Kent"}
	if _, _, err := svc.CreateProduct(ctx, p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	_, _, err := svc.CreateProduct(ctx, p)
	var ce domain.ConflictError
	if !errors.As(err, &ce) || !ce.Retryable() {
		t.Fatalf("expected retryable conflict, got %v", err)
	}
}

func TestProductDeleteGuards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	product, _ := mustProductAndBatch(t, svc)

	_, err := svc.DeleteProduct(ctx, product.Code)
	if !errors.Is(err, domain.ErrReferenced) {
		t.Fatalf("expected referenced error, got %v", err)
	}
	if _, err := svc.GetProduct(ctx, product.Code); err != nil {
		t.Fatalf("product should remain after rejected delete: %v", err)
	}

	lone, _, err := svc.CreateProduct(ctx, Product{Name: "Avocado", Variety: "Hass"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := svc.DeleteProduct(ctx, lone.Code); err != nil {
		t.Fatalf("delete unreferenced product: %v", err)
	}
	if _, err := svc.GetProduct(ctx, lone.Code); !domain.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, _, err := svc.CreateProduct(ctx, Product{Name: "Grape"})
	var ve domain.ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 1 || ve.Fields[0].Field != "variety" {
		t.Fatalf("expected variety validation error, got %v", err)
	}
	products, _ := svc.ListProducts(ctx)
	if len(products) != 0 {
		t.Fatalf("nothing should be written on validation failure")
	}

	_, batch := mustProductAndBatch(t, svc)
	_, _, err = svc.RecordInspection(ctx, Inspection{BatchCode: batch.Code, Inspector: "Ana", ConformityPct: 120})
	if !domain.IsValidation(err) {
		t.Fatalf("expected conformity range validation, got %v", err)
	}
	_, _, err = svc.RecordLabTest(ctx, LabTest{BatchCode: batch.Code, Analyst: "Luis", PesticideResidue: "traces", Microbiology: "negative"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected residue enum validation, got %v", err)
	}
	_, _, err = svc.RecordInspection(ctx, Inspection{BatchCode: "LT-missing", Inspector: "Ana", ConformityPct: 90})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected missing batch, got %v", err)
	}
}

func TestUpdateProductAndBatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	product, batch := mustProductAndBatch(t, svc)

	updated, _, err := svc.UpdateProduct(ctx, product.Code, func(p *Product) error {
		p.Season = "2024-II"
		p.Code = "ignored"
		return nil
	})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Season != "2024-II" || updated.Code != product.Code {
		t.Fatalf("unexpected product %+v", updated)
	}
	if _, _, err := svc.UpdateProduct(ctx, product.Code, func(p *Product) error {
		p.State = "RETIRED"
		return nil
	}); !domain.IsValidation(err) {
		t.Fatalf("expected enum validation for product state, got %v", err)
	}

	if _, _, err := svc.UpdateBatch(ctx, batch.Code, func(b *Batch) error {
		b.Owner = "Coop Sur"
		return nil
	}); err != nil {
		t.Fatalf("update batch: %v", err)
	}
	if _, _, err := svc.UpdateBatch(ctx, batch.Code, func(b *Batch) error {
		b.Status = domain.BatchApproved
		return nil
	}); !domain.IsValidation(err) {
		t.Fatalf("expected status edit to be rejected, got %v", err)
	}
}

func TestShipmentRequiresApprovedBatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, batch := mustProductAndBatch(t, svc)
	_, _, err := svc.CreateShipmentTrace(ctx, ShipmentTrace{
		BatchCode: batch.Code, DestinationCountry: "Spain", Client: "Frutas SA",
		ContainerNumber: "C1", ShipDate: harvest, Port: "Paita",
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected transition error for NEW batch, got %v", err)
	}
	traces, _ := svc.ListShipmentTraces(ctx, "")
	if len(traces) != 0 {
		t.Fatalf("rejected shipment must not be stored")
	}
	eligible, _ := svc.ListShipmentEligibleBatches(ctx)
	if len(eligible) != 0 {
		t.Fatalf("NEW batch must not be eligible")
	}
}

func TestSensorBreachRaisesAlerts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, batch := mustProductAndBatch(t, svc)

	reading, _, err := svc.RecordSensorReading(ctx, SensorReading{
		BatchCode: batch.Code, TemperatureC: 12, HumidityPct: 90, SensorState: domain.SensorOperational,
	})
	if err != nil {
		t.Fatalf("record reading: %v", err)
	}
	if !reading.AlertRaised {
		t.Fatalf("expected alert flag on breaching reading")
	}
	alerts, err := svc.ListAlerts(ctx, AlertFilter{BatchCode: batch.Code, State: domain.AlertActive})
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %+v", alerts)
	}
	alert := alerts[0]
	if alert.Parameter != "temperature_c" || alert.LimitValue != 8 || alert.DetectedValue != 12 || alert.Level != domain.AlertCritical {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if !codegen.Match(EntityAlert, alert.Code) {
		t.Fatalf("unexpected alert code %s", alert.Code)
	}

	if _, _, err := svc.ResolveAlert(ctx, alert.Code, "  "); !domain.IsValidation(err) {
		t.Fatalf("expected remediation text to be required, got %v", err)
	}
	resolved, _, err := svc.ResolveAlert(ctx, alert.Code, "moved to cold room 2")
	if err != nil {
		t.Fatalf("resolve alert: %v", err)
	}
	if resolved.State != domain.AlertResolved || resolved.ResolvedAt == nil || resolved.ActionTaken != "moved to cold room 2" {
		t.Fatalf("unexpected resolved alert %+v", resolved)
	}
	if _, _, err := svc.ResolveAlert(ctx, alert.Code, "again"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected second resolve to fail, got %v", err)
	}

	fault, _, err := svc.RecordSensorReading(ctx, SensorReading{
		BatchCode: batch.Code, TemperatureC: 5, HumidityPct: 90, SensorState: domain.SensorFault,
	})
	if err != nil {
		t.Fatalf("record fault reading: %v", err)
	}
	if !fault.AlertRaised {
		t.Fatalf("fault reading should raise an alert")
	}
	all, _ := svc.ListAlerts(ctx, AlertFilter{})
	if len(all) != 2 {
		t.Fatalf("expected two alerts, got %d", len(all))
	}
}

func TestSensorLimitsOption(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithSensorLimits(domain.SensorLimits{}))
	_, batch := mustProductAndBatch(t, svc)
	reading, _, err := svc.RecordSensorReading(ctx, SensorReading{BatchCode: batch.Code, TemperatureC: 30, HumidityPct: 20, SensorState: domain.SensorOperational})
	if err != nil {
		t.Fatalf("record reading: %v", err)
	}
	if reading.AlertRaised {
		t.Fatalf("disabled limits must not raise alerts")
	}
}

func TestApprovalWithActiveAlertsWarns(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, batch := mustProductAndBatch(t, svc)
	recordPassingChecks(t, svc, batch.Code)
	if _, _, err := svc.RaiseAlert(ctx, Alert{
		BatchCode: batch.Code, Type: "MANUAL", Level: domain.AlertMedium, Message: "bruising seen", Parameter: "appearance",
	}); err != nil {
		t.Fatalf("raise alert: %v", err)
	}
	_, res, err := svc.GenerateQualityReport(ctx, ReportRequest{BatchCode: batch.Code, Destination: "Miami", Approver: "QA"})
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != "approved_with_active_alerts" || res.Violations[0].Severity != SeverityWarn {
		t.Fatalf("expected active alert warning, got %+v", res.Violations)
	}
}

func TestListFiltersAndUnknownBatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	product, batch := mustProductAndBatch(t, svc)
	recordPassingChecks(t, svc, batch.Code)

	inspections, err := svc.ListInspections(ctx, batch.Code)
	if err != nil || len(inspections) != 1 {
		t.Fatalf("expected one inspection, got %d (%v)", len(inspections), err)
	}
	if _, err := svc.ListLabTests(ctx, "LT-unknown"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for unknown batch, got %v", err)
	}
	byProduct, _ := svc.ListBatches(ctx, BatchFilter{ProductCode: product.Code})
	byStatus, _ := svc.ListBatches(ctx, BatchFilter{Status: domain.BatchApproved})
	if len(byProduct) != 1 || len(byStatus) != 0 {
		t.Fatalf("unexpected filtered batches %d %d", len(byProduct), len(byStatus))
	}
	readings, _ := svc.ListSensorReadings(ctx, "")
	packaging, _ := svc.ListPackagingTests(ctx, batch.Code)
	if len(readings) != 1 || len(packaging) != 1 {
		t.Fatalf("unexpected check counts %d %d", len(readings), len(packaging))
	}
}

func TestFixedClockStampsRecords(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(ClockFunc(func() time.Time { return fixed })))
	_, batch := mustProductAndBatch(t, svc)
	ins, _, err := svc.RecordInspection(ctx, Inspection{BatchCode: batch.Code, Inspector: "Ana", ConformityPct: 90})
	if err != nil {
		t.Fatalf("record inspection: %v", err)
	}
	if !ins.InspectedAt.Equal(fixed) || !ins.CreatedAt.Equal(fixed) {
		t.Fatalf("expected fixed timestamps, got %s %s", ins.InspectedAt, ins.CreatedAt)
	}
	if ins.Result != domain.ResultApproved {
		t.Fatalf("90%% conformity is APPROVED, got %s", ins.Result)
	}
	if ins.Code[4:12] != "20240510" {
		t.Fatalf("expected code dated by the service clock, got %s", ins.Code)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newTestService(t)
	if _, _, err := svc.CreateProduct(ctx, Product{Name: "Lime", Variety: "Tahiti"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
