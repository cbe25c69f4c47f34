package domain

import "context"

// Transaction exposes the record operations that a persistence implementation
// must support within an atomic scope. Records are addressed by code.
type Transaction interface {
	Snapshot() TransactionView
	CreateProduct(Product) (Product, error)
	UpdateProduct(code string, mutator func(*Product) error) (Product, error)
	DeleteProduct(code string) error
	CreateBatch(Batch) (Batch, error)
	UpdateBatch(code string, mutator func(*Batch) error) (Batch, error)
	CreateInspection(Inspection) (Inspection, error)
	CreateSensorReading(SensorReading) (SensorReading, error)
	CreateLabTest(LabTest) (LabTest, error)
	CreatePackagingTest(PackagingTest) (PackagingTest, error)
	CreateAlert(Alert) (Alert, error)
	UpdateAlert(code string, mutator func(*Alert) error) (Alert, error)
	CreateQualityReport(QualityReport) (QualityReport, error)
	CreateShipmentTrace(ShipmentTrace) (ShipmentTrace, error)
	UpdateShipmentTrace(code string, mutator func(*ShipmentTrace) error) (ShipmentTrace, error)
}

// TransactionView provides read-only access to snapshot data. List methods
// return records ordered by creation time, then code.
type TransactionView interface {
	ListProducts() []Product
	FindProduct(code string) (Product, bool)
	ListBatches() []Batch
	FindBatch(code string) (Batch, bool)
	ListInspections() []Inspection
	ListSensorReadings() []SensorReading
	ListLabTests() []LabTest
	ListPackagingTests() []PackagingTest
	ListAlerts() []Alert
	FindAlert(code string) (Alert, bool)
	ListQualityReports() []QualityReport
	FindQualityReport(code string) (QualityReport, bool)
	ListShipmentTraces() []ShipmentTrace
	FindShipmentTrace(code string) (ShipmentTrace, bool)
	BatchRecords(code string) (BatchRecords, bool)
}

// BatchRecords is every record attached to one batch: its traceability view.
type BatchRecords struct {
	Batch          Batch           `json:"batch"`
	Product        *Product        `json:"product,omitempty"`
	Inspections    []Inspection    `json:"inspections"`
	SensorReadings []SensorReading `json:"sensor_readings"`
	LabTests       []LabTest       `json:"lab_tests"`
	PackagingTests []PackagingTest `json:"packaging_tests"`
	Alerts         []Alert         `json:"alerts"`
	Report         *QualityReport  `json:"report,omitempty"`
	Shipments      []ShipmentTrace `json:"shipments"`
}

// HasChecks reports whether any inspection, reading or test was recorded.
func (r BatchRecords) HasChecks() bool {
	return len(r.Inspections)+len(r.SensorReadings)+len(r.LabTests)+len(r.PackagingTests) > 0
}

// PersistentStore is the abstraction over durable backends used by higher
// layers. One handle is opened at startup and closed at exit.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
