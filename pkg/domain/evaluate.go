package domain

import "strings"

// Inspection conformity thresholds.
const (
	InspectionApproveAt   = 90.0
	InspectionRejectBelow = 70.0
)

// Quality percentages recorded per decision bucket. They are fixed values, not
// a weighted computation over the upstream checks.
const (
	QualityPctApproved = 95.0
	QualityPctRejected = 60.0
	QualityPctPending  = 75.0
)

// EvaluateInspection maps a conformity percentage to an inspection result.
// Exactly 90 is APPROVED and exactly 70 is OBSERVED.
func EvaluateInspection(conformity float64) CheckResult {
	switch {
	case conformity >= InspectionApproveAt:
		return ResultApproved
	case conformity < InspectionRejectBelow:
		return ResultRejected
	default:
		return ResultObserved
	}
}

// EvaluateLabTest derives a lab result. Rejection takes precedence over a
// pending microbiology culture.
func EvaluateLabTest(residue PesticideResidue, micro Microbiology) CheckResult {
	residue = NormalizeResidue(residue)
	micro = NormalizeMicrobiology(micro)
	if residue == ResidueExceedsLimits || micro == MicrobiologyPositive {
		return ResultRejected
	}
	if micro == MicrobiologyInProgress {
		return ResultPending
	}
	return ResultApproved
}

// EvaluatePackaging approves a container only when all three sub-tests pass.
func EvaluatePackaging(seal, resistance, compatibility bool) CheckResult {
	if seal && resistance && compatibility {
		return ResultApproved
	}
	return ResultRejected
}

// EvaluateSensors returns NORMAL when the latest reading reports an
// operational sensor array. A batch without readings is ALERT.
func EvaluateSensors(latest *SensorReading) SensorStatus {
	if latest != nil && latest.SensorState == SensorOperational {
		return SensorNormal
	}
	return SensorAlert
}

// DecisionInputs are the four upstream results combined into a report decision.
type DecisionInputs struct {
	Inspection CheckResult
	Lab        CheckResult
	Sensors    SensorStatus
	Packaging  CheckResult
}

// Decide combines the upstream results into a final decision and its quality
// percentage. Empty inspection or lab inputs count as PENDING.
func Decide(in DecisionInputs) (CheckResult, float64) {
	if in.Inspection == "" {
		in.Inspection = ResultPending
	}
	if in.Lab == "" {
		in.Lab = ResultPending
	}
	if in.Packaging == "" {
		in.Packaging = ResultPending
	}
	if in.Inspection == ResultApproved && in.Lab == ResultApproved &&
		in.Sensors == SensorNormal && in.Packaging == ResultApproved {
		return ResultApproved, QualityPctApproved
	}
	if in.Inspection == ResultRejected || in.Lab == ResultRejected || in.Packaging == ResultRejected {
		return ResultRejected, QualityPctRejected
	}
	return ResultPending, QualityPctPending
}

// LatestInspection returns the most recent inspection, or nil.
func LatestInspection(items []Inspection) *Inspection {
	var latest *Inspection
	for i := range items {
		if latest == nil || !items[i].InspectedAt.Before(latest.InspectedAt) {
			latest = &items[i]
		}
	}
	return latest
}

// LatestLabTest returns the most recent lab test, or nil.
func LatestLabTest(items []LabTest) *LabTest {
	var latest *LabTest
	for i := range items {
		if latest == nil || !items[i].TestedAt.Before(latest.TestedAt) {
			latest = &items[i]
		}
	}
	return latest
}

// LatestSensorReading returns the most recent reading, or nil.
func LatestSensorReading(items []SensorReading) *SensorReading {
	var latest *SensorReading
	for i := range items {
		if latest == nil || !items[i].ReadAt.Before(latest.ReadAt) {
			latest = &items[i]
		}
	}
	return latest
}

// LatestPackagingTest returns the most recent packaging evaluation, or nil.
func LatestPackagingTest(items []PackagingTest) *PackagingTest {
	var latest *PackagingTest
	for i := range items {
		if latest == nil || !items[i].EvaluatedAt.Before(latest.EvaluatedAt) {
			latest = &items[i]
		}
	}
	return latest
}

// InspectionResultOf returns the result of the latest inspection, PENDING when none exist.
func InspectionResultOf(items []Inspection) CheckResult {
	if latest := LatestInspection(items); latest != nil {
		return latest.Result
	}
	return ResultPending
}

// LabResultOf returns the result of the latest lab test, PENDING when none exist.
func LabResultOf(items []LabTest) CheckResult {
	if latest := LatestLabTest(items); latest != nil {
		return latest.Result
	}
	return ResultPending
}

// PackagingResultOf returns the result of the latest packaging evaluation,
// PENDING when none exist.
func PackagingResultOf(items []PackagingTest) CheckResult {
	if latest := LatestPackagingTest(items); latest != nil {
		return latest.Result
	}
	return ResultPending
}

// NormalizeResidue folds case and whitespace onto the canonical residue labels.
func NormalizeResidue(r PesticideResidue) PesticideResidue {
	return PesticideResidue(normalizeLabel(string(r)))
}

// NormalizeMicrobiology folds case and whitespace onto the canonical labels.
func NormalizeMicrobiology(m Microbiology) Microbiology {
	return Microbiology(normalizeLabel(string(m)))
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}
