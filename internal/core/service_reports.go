package core

import (
	"context"
	"fmt"
	"time"

	"agroqc/pkg/domain"
)

// ReportRequest carries the operator inputs of a quality report. The
// inspection, lab and sensor results are derived from the batch records.
// An empty PackagingResult falls back to the latest packaging evaluation.
type ReportRequest struct {
	Code            string             `json:"code"`
	BatchCode       string             `json:"batch_code"`
	IssuedAt        time.Time          `json:"issued_at"`
	PackagingResult domain.CheckResult `json:"packaging_result"`
	Certifications  []string           `json:"certifications"`
	Destination     string             `json:"destination"`
	Approver        string             `json:"approver"`
}

// GenerateQualityReport consolidates the latest checks of a batch into its
// single quality report and moves the batch to the status the decision maps to.
func (s *Service) GenerateQualityReport(ctx context.Context, req ReportRequest) (QualityReport, Result, error) {
	var created QualityReport
	res, err := s.run(ctx, "generate_report", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntityQualityReport, &req.Code); err != nil {
			return "", err
		}
		records, ok := tx.Snapshot().BatchRecords(req.BatchCode)
		if !ok {
			return req.Code, domain.ErrNotFound{Entity: EntityBatch, ID: req.BatchCode}
		}
		if records.Report != nil {
			return req.Code, domain.ConflictError{Entity: EntityQualityReport, Field: "batch_code", Value: req.BatchCode}
		}
		packaging := req.PackagingResult
		if packaging == "" {
			packaging = domain.PackagingResultOf(records.PackagingTests)
		}
		report := QualityReport{
			Code:             req.Code,
			BatchCode:        req.BatchCode,
			IssuedAt:         req.IssuedAt,
			InspectionResult: domain.InspectionResultOf(records.Inspections),
			SensorStatus:     domain.EvaluateSensors(domain.LatestSensorReading(records.SensorReadings)),
			LabResult:        domain.LabResultOf(records.LabTests),
			PackagingResult:  packaging,
			Certifications:   domain.NewStringList(req.Certifications...),
			Destination:      req.Destination,
			Approver:         req.Approver,
		}
		if report.IssuedAt.IsZero() {
			report.IssuedAt = s.now()
		}
		if err := domain.Validate(EntityQualityReport, report); err != nil {
			return report.Code, err
		}
		report.Decision, report.QualityPct = domain.Decide(domain.DecisionInputs{
			Inspection: report.InspectionResult,
			Lab:        report.LabResult,
			Sensors:    report.SensorStatus,
			Packaging:  report.PackagingResult,
		})
		var err error
		if created, err = tx.CreateQualityReport(report); err != nil {
			return report.Code, err
		}
		_, err = tx.UpdateBatch(report.BatchCode, func(b *Batch) error {
			return b.Transition(domain.StatusForDecision(report.Decision))
		})
		return report.Code, err
	})
	return created, res, err
}

// GetQualityReport returns a report by code.
func (s *Service) GetQualityReport(ctx context.Context, code string) (QualityReport, error) {
	var out QualityReport
	err := s.view(ctx, "get_report", func(v TransactionView) error {
		r, ok := v.FindQualityReport(code)
		if !ok {
			return domain.ErrNotFound{Entity: EntityQualityReport, ID: code}
		}
		out = r
		return nil
	})
	return out, err
}

// ListQualityReports returns reports, optionally limited to one decision.
func (s *Service) ListQualityReports(ctx context.Context, decision domain.CheckResult) ([]QualityReport, error) {
	var out []QualityReport
	err := s.view(ctx, "list_reports", func(v TransactionView) error {
		out = make([]QualityReport, 0)
		for _, r := range v.ListQualityReports() {
			if decision == "" || r.Decision == decision {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// CreateShipmentTrace records the export shipment of an APPROVED batch and
// marks the batch EXPORTED.
func (s *Service) CreateShipmentTrace(ctx context.Context, trace ShipmentTrace) (ShipmentTrace, Result, error) {
	var created ShipmentTrace
	res, err := s.run(ctx, "create_shipment_trace", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntityShipmentTrace, &trace.Code); err != nil {
			return "", err
		}
		trace.State = domain.ShipmentPreparation
		trace.RequiredCerts = domain.NewStringList(trace.RequiredCerts...)
		trace.Documents = domain.NewStringList(trace.Documents...)
		if err := domain.Validate(EntityShipmentTrace, trace); err != nil {
			return trace.Code, err
		}
		var err error
		if created, err = tx.CreateShipmentTrace(trace); err != nil {
			return trace.Code, err
		}
		_, err = tx.UpdateBatch(trace.BatchCode, func(b *Batch) error {
			return b.Transition(domain.BatchExported)
		})
		return trace.Code, err
	})
	return created, res, err
}

// AdvanceShipment moves a shipment forward to next. Shipments never move back.
func (s *Service) AdvanceShipment(ctx context.Context, code string, next domain.ShipmentState) (ShipmentTrace, Result, error) {
	var updated ShipmentTrace
	res, err := s.run(ctx, "advance_shipment_trace", func(tx Transaction) (string, error) {
		if !next.Valid() {
			return code, domain.ValidationError{Entity: EntityShipmentTrace, Fields: []domain.FieldError{{
				Field: "state", Message: fmt.Sprintf("must be one of %s, %s, %s", domain.ShipmentPreparation, domain.ShipmentShipped, domain.ShipmentDelivered),
			}}}
		}
		var err error
		updated, err = tx.UpdateShipmentTrace(code, func(t *ShipmentTrace) error {
			if !t.State.CanAdvance(next) {
				return fmt.Errorf("shipment %s cannot move from %s to %s: %w", code, t.State, next, domain.ErrInvalidTransition)
			}
			t.State = next
			return nil
		})
		return code, err
	})
	return updated, res, err
}

// GetShipmentTrace returns a shipment trace by code.
func (s *Service) GetShipmentTrace(ctx context.Context, code string) (ShipmentTrace, error) {
	var out ShipmentTrace
	err := s.view(ctx, "get_shipment_trace", func(v TransactionView) error {
		t, ok := v.FindShipmentTrace(code)
		if !ok {
			return domain.ErrNotFound{Entity: EntityShipmentTrace, ID: code}
		}
		out = t
		return nil
	})
	return out, err
}

// ListShipmentTraces returns the traces of a batch, or all when batchCode is empty.
func (s *Service) ListShipmentTraces(ctx context.Context, batchCode string) ([]ShipmentTrace, error) {
	var out []ShipmentTrace
	err := s.view(ctx, "list_shipment_traces", func(v TransactionView) error {
		var err error
		out, err = batchScoped(v, batchCode, v.ListShipmentTraces(), func(t ShipmentTrace) string { return t.BatchCode })
		return err
	})
	return out, err
}
