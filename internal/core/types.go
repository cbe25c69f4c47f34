package core

import "agroqc/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Product            = domain.Product
	Batch              = domain.Batch
	Inspection         = domain.Inspection
	SensorReading      = domain.SensorReading
	LabTest            = domain.LabTest
	PackagingTest      = domain.PackagingTest
	Alert              = domain.Alert
	QualityReport      = domain.QualityReport
	ShipmentTrace      = domain.ShipmentTrace
	BatchRecords       = domain.BatchRecords
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityProduct       = domain.EntityProduct
	EntityBatch         = domain.EntityBatch
	EntityInspection    = domain.EntityInspection
	EntitySensorReading = domain.EntitySensorReading
	EntityLabTest       = domain.EntityLabTest
	EntityPackagingTest = domain.EntityPackagingTest
	EntityAlert         = domain.EntityAlert
	EntityQualityReport = domain.EntityQualityReport
	EntityShipmentTrace = domain.EntityShipmentTrace
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// EntitySummary names summary definitions in not-found errors.
const EntitySummary EntityType = "summary"
