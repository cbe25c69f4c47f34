// Package domain defines the quality-control records, status vocabularies,
// evaluation rules and persistence contracts used by agroqc.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence tables.
const (
	// EntityProduct identifies an agro-industrial product record.
	EntityProduct EntityType = "product"
	// EntityBatch identifies a harvested production batch.
	EntityBatch EntityType = "batch"
	// EntityInspection identifies a visual inspection record.
	EntityInspection EntityType = "inspection"
	// EntitySensorReading identifies a sensor reading record.
	EntitySensorReading EntityType = "sensor_reading"
	// EntityLabTest identifies a physico-chemical lab test record.
	EntityLabTest EntityType = "lab_test"
	// EntityPackagingTest identifies a packaging compatibility evaluation.
	EntityPackagingTest EntityType = "packaging_test"
	// EntityAlert identifies an alert raised against a batch.
	EntityAlert EntityType = "alert"
	// EntityQualityReport identifies the consolidated quality report of a batch.
	EntityQualityReport EntityType = "quality_report"
	// EntityShipmentTrace identifies an export traceability record.
	EntityShipmentTrace EntityType = "shipment_trace"
)

// CheckResult is the status label derived for a check or a report decision.
type CheckResult string

// Result labels shared by inspections, lab tests, packaging tests and reports.
const (
	ResultApproved CheckResult = "APPROVED"
	ResultRejected CheckResult = "REJECTED"
	ResultObserved CheckResult = "OBSERVED"
	ResultPending  CheckResult = "PENDING"
)

// Valid reports whether r is a known label.
func (r CheckResult) Valid() bool {
	switch r {
	case ResultApproved, ResultRejected, ResultObserved, ResultPending:
		return true
	}
	return false
}

// SensorStatus summarises the latest sensor reading of a batch.
type SensorStatus string

// Sensor summary statuses feeding the report decision.
const (
	SensorNormal SensorStatus = "NORMAL"
	SensorAlert  SensorStatus = "ALERT"
)

// BatchStatus enumerates the batch lifecycle states.
type BatchStatus string

// Batch lifecycle states; see lifecycle.go for allowed transitions.
const (
	BatchNew       BatchStatus = "NEW"
	BatchInProcess BatchStatus = "IN_PROCESS"
	BatchApproved  BatchStatus = "APPROVED"
	BatchRejected  BatchStatus = "REJECTED"
	BatchInReview  BatchStatus = "IN_REVIEW"
	BatchExported  BatchStatus = "EXPORTED"
)

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchNew, BatchInProcess, BatchApproved, BatchRejected, BatchInReview, BatchExported:
		return true
	}
	return false
}

// ProductState captures whether a product is offered.
type ProductState string

// Product availability states.
const (
	ProductActive        ProductState = "ACTIVE"
	ProductInactive      ProductState = "INACTIVE"
	ProductInDevelopment ProductState = "IN_DEVELOPMENT"
)

// Valid reports whether s is a known product state.
func (s ProductState) Valid() bool {
	switch s {
	case ProductActive, ProductInactive, ProductInDevelopment:
		return true
	}
	return false
}

// SensorState is the health reported by the sensor array for a reading.
type SensorState string

// Sensor array states.
const (
	SensorOperational SensorState = "OPERATIONAL"
	SensorMaintenance SensorState = "MAINTENANCE"
	SensorFault       SensorState = "FAULT"
)

// Valid reports whether s is a known sensor state.
func (s SensorState) Valid() bool {
	switch s {
	case SensorOperational, SensorMaintenance, SensorFault:
		return true
	}
	return false
}

// PesticideResidue classifies the residue analysis of a lab test.
type PesticideResidue string

// Residue classes.
const (
	ResidueNotDetected   PesticideResidue = "not detected"
	ResidueWithinLimits  PesticideResidue = "within limits"
	ResidueExceedsLimits PesticideResidue = "exceeds limits"
)

// Valid reports whether r is a known residue class.
func (r PesticideResidue) Valid() bool {
	switch PesticideResidue(normalizeLabel(string(r))) {
	case ResidueNotDetected, ResidueWithinLimits, ResidueExceedsLimits:
		return true
	}
	return false
}

// Microbiology is the outcome of the microbiological analysis.
type Microbiology string

// Microbiology outcomes.
const (
	MicrobiologyNegative   Microbiology = "negative"
	MicrobiologyPositive   Microbiology = "positive"
	MicrobiologyInProgress Microbiology = "in progress"
)

// Valid reports whether m is a known microbiology outcome.
func (m Microbiology) Valid() bool {
	switch Microbiology(normalizeLabel(string(m))) {
	case MicrobiologyNegative, MicrobiologyPositive, MicrobiologyInProgress:
		return true
	}
	return false
}

// AlertLevel is the criticality of an alert.
type AlertLevel string

// Alert criticality levels.
const (
	AlertLow      AlertLevel = "LOW"
	AlertMedium   AlertLevel = "MEDIUM"
	AlertHigh     AlertLevel = "HIGH"
	AlertCritical AlertLevel = "CRITICAL"
)

// Valid reports whether l is a known alert level.
func (l AlertLevel) Valid() bool {
	switch l {
	case AlertLow, AlertMedium, AlertHigh, AlertCritical:
		return true
	}
	return false
}

// AlertState tracks whether an alert still needs attention.
type AlertState string

// Alert states. Alerts only move ACTIVE -> RESOLVED through operator action.
const (
	AlertActive   AlertState = "ACTIVE"
	AlertResolved AlertState = "RESOLVED"
)

// ShipmentState tracks an export shipment.
type ShipmentState string

// Shipment states, in order.
const (
	ShipmentPreparation ShipmentState = "PREPARATION"
	ShipmentShipped     ShipmentState = "SHIPPED"
	ShipmentDelivered   ShipmentState = "DELIVERED"
)

// Valid reports whether s is a known shipment state.
func (s ShipmentState) Valid() bool {
	switch s {
	case ShipmentPreparation, ShipmentShipped, ShipmentDelivered:
		return true
	}
	return false
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Product is an agro-industrial product line (e.g. green asparagus, UC-157).
type Product struct {
	Base
	Code         string       `json:"code" db:"code"`
	Name         string       `json:"name" db:"name" validate:"required"`
	Variety      string       `json:"variety" db:"variety" validate:"required"`
	Category     string       `json:"category" db:"category"`
	OriginField  string       `json:"origin_field" db:"origin_field"`
	Season       string       `json:"season" db:"season"`
	State        ProductState `json:"state" db:"state" validate:"omitempty,enum"`
	RegisteredOn time.Time    `json:"registered_on" db:"registered_on"`
}

// Batch is a traceable quantity of harvested product.
type Batch struct {
	Base
	Code        string          `json:"code" db:"code"`
	ProductCode string          `json:"product_code" db:"product_code" validate:"required"`
	HarvestDate time.Time       `json:"harvest_date" db:"harvest_date" validate:"required"`
	QuantityKg  decimal.Decimal `json:"quantity_kg" db:"quantity_kg" validate:"gt=0"`
	OriginField string          `json:"origin_field" db:"origin_field" validate:"required"`
	Owner       string          `json:"owner" db:"owner" validate:"required"`
	Status      BatchStatus     `json:"status" db:"status" validate:"omitempty,enum"`
}

// Inspection records a visual quality inspection of a batch.
type Inspection struct {
	Base
	Code              string      `json:"code" db:"code"`
	BatchCode         string      `json:"batch_code" db:"batch_code" validate:"required"`
	InspectedAt       time.Time   `json:"inspected_at" db:"inspected_at"`
	Inspector         string      `json:"inspector" db:"inspector" validate:"required"`
	ColorRating       string      `json:"color_rating" db:"color_rating"`
	ShapeRating       string      `json:"shape_rating" db:"shape_rating"`
	SizeRating        string      `json:"size_rating" db:"size_rating"`
	DefectNotes       string      `json:"defect_notes" db:"defect_notes"`
	ConformityPct     float64     `json:"conformity_pct" db:"conformity_pct" validate:"gte=0,lte=100"`
	Result            CheckResult `json:"result" db:"result"`
	Notes             string      `json:"notes" db:"notes"`
	ProcessingMinutes float64     `json:"processing_minutes" db:"processing_minutes" validate:"gte=0"`
}

// SensorReading is one sample of the batch sensor array.
type SensorReading struct {
	Base
	Code         string      `json:"code" db:"code"`
	BatchCode    string      `json:"batch_code" db:"batch_code" validate:"required"`
	ReadAt       time.Time   `json:"read_at" db:"read_at"`
	TemperatureC float64     `json:"temperature_c" db:"temperature_c"`
	WeightKg     float64     `json:"weight_kg" db:"weight_kg" validate:"gte=0"`
	HumidityPct  float64     `json:"humidity_pct" db:"humidity_pct" validate:"gte=0,lte=100"`
	PH           float64     `json:"ph" db:"ph" validate:"gte=0,lte=14"`
	Brix         float64     `json:"brix" db:"brix" validate:"gte=0"`
	SensorState  SensorState `json:"sensor_state" db:"sensor_state" validate:"required,enum"`
	AlertRaised  bool        `json:"alert_raised" db:"alert_raised"`
}

// LabTest records a physico-chemical and microbiological analysis.
type LabTest struct {
	Base
	Code             string           `json:"code" db:"code"`
	BatchCode        string           `json:"batch_code" db:"batch_code" validate:"required"`
	TestedAt         time.Time        `json:"tested_at" db:"tested_at"`
	Analyst          string           `json:"analyst" db:"analyst" validate:"required"`
	Acidity          float64          `json:"acidity" db:"acidity" validate:"gte=0"`
	SolubleSolids    float64          `json:"soluble_solids" db:"soluble_solids" validate:"gte=0"`
	Firmness         float64          `json:"firmness" db:"firmness" validate:"gte=0"`
	MoisturePct      float64          `json:"moisture_pct" db:"moisture_pct" validate:"gte=0,lte=100"`
	PesticideResidue PesticideResidue `json:"pesticide_residue" db:"pesticide_residue" validate:"required,enum"`
	Microbiology     Microbiology     `json:"microbiology" db:"microbiology" validate:"required,enum"`
	Result           CheckResult      `json:"result" db:"result"`
	OrganicCertified bool             `json:"organic_certified" db:"organic_certified"`
}

// PackagingTest records a container compatibility evaluation.
type PackagingTest struct {
	Base
	Code                string      `json:"code" db:"code"`
	BatchCode           string      `json:"batch_code" db:"batch_code" validate:"required"`
	EvaluatedAt         time.Time   `json:"evaluated_at" db:"evaluated_at"`
	ContainerType       string      `json:"container_type" db:"container_type" validate:"required"`
	Material            string      `json:"material" db:"material" validate:"required"`
	Capacity            string      `json:"capacity" db:"capacity"`
	SealPassed          bool        `json:"seal_passed" db:"seal_passed"`
	ResistancePassed    bool        `json:"resistance_passed" db:"resistance_passed"`
	CompatibilityPassed bool        `json:"compatibility_passed" db:"compatibility_passed"`
	Result              CheckResult `json:"result" db:"result"`
	Notes               string      `json:"notes" db:"notes"`
}

// Alert reports a parameter breach on a batch.
type Alert struct {
	Base
	Code          string     `json:"code" db:"code"`
	BatchCode     string     `json:"batch_code" db:"batch_code" validate:"required"`
	Type          string     `json:"type" db:"type" validate:"required"`
	Level         AlertLevel `json:"level" db:"level" validate:"required,enum"`
	Message       string     `json:"message" db:"message" validate:"required"`
	Parameter     string     `json:"parameter" db:"parameter" validate:"required"`
	DetectedValue float64    `json:"detected_value" db:"detected_value"`
	LimitValue    float64    `json:"limit_value" db:"limit_value"`
	RaisedAt      time.Time  `json:"raised_at" db:"raised_at"`
	State         AlertState `json:"state" db:"state"`
	ActionTaken   string     `json:"action_taken" db:"action_taken"`
	ResolvedAt    *time.Time `json:"resolved_at" db:"resolved_at"`
}

// QualityReport is the consolidated verdict for a batch.
type QualityReport struct {
	Base
	Code             string       `json:"code" db:"code"`
	BatchCode        string       `json:"batch_code" db:"batch_code" validate:"required"`
	IssuedAt         time.Time    `json:"issued_at" db:"issued_at"`
	InspectionResult CheckResult  `json:"inspection_result" db:"inspection_result"`
	SensorStatus     SensorStatus `json:"sensor_status" db:"sensor_status"`
	LabResult        CheckResult  `json:"lab_result" db:"lab_result"`
	PackagingResult  CheckResult  `json:"packaging_result" db:"packaging_result" validate:"required,enum"`
	Decision         CheckResult  `json:"decision" db:"decision"`
	QualityPct       float64      `json:"quality_pct" db:"quality_pct"`
	Certifications   StringList   `json:"certifications" db:"certifications"`
	Destination      string       `json:"destination" db:"destination" validate:"required"`
	Approver         string       `json:"approver" db:"approver" validate:"required"`
}

// ShipmentTrace links an approved batch to its export shipment.
type ShipmentTrace struct {
	Base
	Code               string        `json:"code" db:"code"`
	BatchCode          string        `json:"batch_code" db:"batch_code" validate:"required"`
	DestinationCountry string        `json:"destination_country" db:"destination_country" validate:"required"`
	Client             string        `json:"client" db:"client" validate:"required"`
	RequiredCerts      StringList    `json:"required_certs" db:"required_certs"`
	ContainerNumber    string        `json:"container_number" db:"container_number" validate:"required"`
	ShipDate           time.Time     `json:"ship_date" db:"ship_date" validate:"required"`
	Port               string        `json:"port" db:"port" validate:"required"`
	Documents          StringList    `json:"documents" db:"documents"`
	State              ShipmentState `json:"state" db:"state" validate:"omitempty,enum"`
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
