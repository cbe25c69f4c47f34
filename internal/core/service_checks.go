package core

import (
	"context"
	"fmt"
	"strings"

	"agroqc/pkg/domain"
)

// RecordInspection stores a visual inspection with its derived result.
func (s *Service) RecordInspection(ctx context.Context, in Inspection) (Inspection, Result, error) {
	var created Inspection
	res, err := s.run(ctx, "record_inspection", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntityInspection, &in.Code); err != nil {
			return "", err
		}
		if in.InspectedAt.IsZero() {
			in.InspectedAt = s.now()
		}
		in.Result = domain.EvaluateInspection(in.ConformityPct)
		if err := domain.Validate(EntityInspection, in); err != nil {
			return in.Code, err
		}
		var err error
		if created, err = tx.CreateInspection(in); err != nil {
			return in.Code, err
		}
		return in.Code, markInProcess(tx, in.BatchCode)
	})
	return created, res, err
}

// RecordSensorReading stores a reading and raises one alert per breached
// limit in the same transaction.
func (s *Service) RecordSensorReading(ctx context.Context, reading SensorReading) (SensorReading, Result, error) {
	var created SensorReading
	res, err := s.run(ctx, "record_sensor_reading", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntitySensorReading, &reading.Code); err != nil {
			return "", err
		}
		if reading.ReadAt.IsZero() {
			reading.ReadAt = s.now()
		}
		breaches := domain.DetectBreaches(reading, s.limits)
		reading.AlertRaised = len(breaches) > 0
		if err := domain.Validate(EntitySensorReading, reading); err != nil {
			return reading.Code, err
		}
		var err error
		if created, err = tx.CreateSensorReading(reading); err != nil {
			return reading.Code, err
		}
		for _, b := range breaches {
			alert := Alert{
				BatchCode:     reading.BatchCode,
				Type:          b.Type,
				Level:         b.Level,
				Message:       fmt.Sprintf("%s (reading %s)", b.Message, reading.Code),
				Parameter:     b.Parameter,
				DetectedValue: b.Detected,
				LimitValue:    b.Limit,
				RaisedAt:      reading.ReadAt,
				State:         domain.AlertActive,
			}
			if err := s.assignCode(EntityAlert, &alert.Code); err != nil {
				return reading.Code, err
			}
			if _, err := tx.CreateAlert(alert); err != nil {
				return reading.Code, err
			}
		}
		return reading.Code, markInProcess(tx, reading.BatchCode)
	})
	return created, res, err
}

// RecordLabTest stores a lab analysis with its derived result. Residue and
// microbiology labels are stored in canonical form.
func (s *Service) RecordLabTest(ctx context.Context, test LabTest) (LabTest, Result, error) {
	var created LabTest
	res, err := s.run(ctx, "record_lab_test", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntityLabTest, &test.Code); err != nil {
			return "", err
		}
		if test.TestedAt.IsZero() {
			test.TestedAt = s.now()
		}
		test.PesticideResidue = domain.NormalizeResidue(test.PesticideResidue)
		test.Microbiology = domain.NormalizeMicrobiology(test.Microbiology)
		test.Result = domain.EvaluateLabTest(test.PesticideResidue, test.Microbiology)
		if err := domain.Validate(EntityLabTest, test); err != nil {
			return test.Code, err
		}
		var err error
		if created, err = tx.CreateLabTest(test); err != nil {
			return test.Code, err
		}
		return test.Code, markInProcess(tx, test.BatchCode)
	})
	return created, res, err
}

// RecordPackagingTest stores a packaging evaluation with its derived result.
func (s *Service) RecordPackagingTest(ctx context.Context, test PackagingTest) (PackagingTest, Result, error) {
	var created PackagingTest
	res, err := s.run(ctx, "record_packaging_test", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntityPackagingTest, &test.Code); err != nil {
			return "", err
		}
		if test.EvaluatedAt.IsZero() {
			test.EvaluatedAt = s.now()
		}
		test.Result = domain.EvaluatePackaging(test.SealPassed, test.ResistancePassed, test.CompatibilityPassed)
		if err := domain.Validate(EntityPackagingTest, test); err != nil {
			return test.Code, err
		}
		var err error
		if created, err = tx.CreatePackagingTest(test); err != nil {
			return test.Code, err
		}
		return test.Code, markInProcess(tx, test.BatchCode)
	})
	return created, res, err
}

// batchScoped lists the records of one batch, or of all batches when code is
// empty. An unknown batch is ErrNotFound.
func batchScoped[T any](v TransactionView, code string, all []T, batchOf func(T) string) ([]T, error) {
	out := make([]T, 0, len(all))
	if code != "" {
		if _, ok := v.FindBatch(code); !ok {
			return nil, domain.ErrNotFound{Entity: EntityBatch, ID: code}
		}
	}
	for _, item := range all {
		if code == "" || batchOf(item) == code {
			out = append(out, item)
		}
	}
	return out, nil
}

// ListInspections returns the inspections of a batch, or all when batchCode is empty.
func (s *Service) ListInspections(ctx context.Context, batchCode string) ([]Inspection, error) {
	var out []Inspection
	err := s.view(ctx, "list_inspections", func(v TransactionView) error {
		var err error
		out, err = batchScoped(v, batchCode, v.ListInspections(), func(i Inspection) string { return i.BatchCode })
		return err
	})
	return out, err
}

// ListSensorReadings returns the readings of a batch, or all when batchCode is empty.
func (s *Service) ListSensorReadings(ctx context.Context, batchCode string) ([]SensorReading, error) {
	var out []SensorReading
	err := s.view(ctx, "list_sensor_readings", func(v TransactionView) error {
		var err error
		out, err = batchScoped(v, batchCode, v.ListSensorReadings(), func(r SensorReading) string { return r.BatchCode })
		return err
	})
	return out, err
}

// ListLabTests returns the lab tests of a batch, or all when batchCode is empty.
func (s *Service) ListLabTests(ctx context.Context, batchCode string) ([]LabTest, error) {
	var out []LabTest
	err := s.view(ctx, "list_lab_tests", func(v TransactionView) error {
		var err error
		out, err = batchScoped(v, batchCode, v.ListLabTests(), func(l LabTest) string { return l.BatchCode })
		return err
	})
	return out, err
}

// ListPackagingTests returns the packaging tests of a batch, or all when batchCode is empty.
func (s *Service) ListPackagingTests(ctx context.Context, batchCode string) ([]PackagingTest, error) {
	var out []PackagingTest
	err := s.view(ctx, "list_packaging_tests", func(v TransactionView) error {
		var err error
		out, err = batchScoped(v, batchCode, v.ListPackagingTests(), func(p PackagingTest) string { return p.BatchCode })
		return err
	})
	return out, err
}

// RaiseAlert records an operator-raised alert. Alerts always start ACTIVE.
func (s *Service) RaiseAlert(ctx context.Context, alert Alert) (Alert, Result, error) {
	var created Alert
	res, err := s.run(ctx, "raise_alert", func(tx Transaction) (string, error) {
		if err := s.assignCode(EntityAlert, &alert.Code); err != nil {
			return "", err
		}
		if alert.RaisedAt.IsZero() {
			alert.RaisedAt = s.now()
		}
		alert.State = domain.AlertActive
		alert.ActionTaken = ""
		alert.ResolvedAt = nil
		if err := domain.Validate(EntityAlert, alert); err != nil {
			return alert.Code, err
		}
		var err error
		created, err = tx.CreateAlert(alert)
		return alert.Code, err
	})
	return created, res, err
}

// ResolveAlert closes an ACTIVE alert with the remediation taken.
func (s *Service) ResolveAlert(ctx context.Context, code, action string) (Alert, Result, error) {
	var updated Alert
	res, err := s.run(ctx, "resolve_alert", func(tx Transaction) (string, error) {
		action = strings.TrimSpace(action)
		if action == "" {
			return code, domain.ValidationError{Entity: EntityAlert, Fields: []domain.FieldError{{
				Field: "action_taken", Message: "is required",
			}}}
		}
		var err error
		updated, err = tx.UpdateAlert(code, func(a *Alert) error {
			if a.State == domain.AlertResolved {
				return fmt.Errorf("alert %s is already resolved: %w", code, domain.ErrInvalidTransition)
			}
			resolved := s.now()
			a.State = domain.AlertResolved
			a.ActionTaken = action
			a.ResolvedAt = &resolved
			return nil
		})
		return code, err
	})
	return updated, res, err
}

// AlertFilter narrows ListAlerts. Zero fields match everything.
type AlertFilter struct {
	BatchCode string
	State     domain.AlertState
	Level     domain.AlertLevel
}

// ListAlerts returns alerts matching filter ordered by creation.
func (s *Service) ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	var out []Alert
	err := s.view(ctx, "list_alerts", func(v TransactionView) error {
		scoped, err := batchScoped(v, filter.BatchCode, v.ListAlerts(), func(a Alert) string { return a.BatchCode })
		if err != nil {
			return err
		}
		out = make([]Alert, 0, len(scoped))
		for _, a := range scoped {
			if (filter.State == "" || a.State == filter.State) && (filter.Level == "" || a.Level == filter.Level) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// GetAlert returns an alert by code.
func (s *Service) GetAlert(ctx context.Context, code string) (Alert, error) {
	var out Alert
	err := s.view(ctx, "get_alert", func(v TransactionView) error {
		a, ok := v.FindAlert(code)
		if !ok {
			return domain.ErrNotFound{Entity: EntityAlert, ID: code}
		}
		out = a
		return nil
	})
	return out, err
}
