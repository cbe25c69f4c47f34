// Package memory provides an in-memory implementation of the persistence
// store. It is the transactional engine for every backend: durable stores
// hydrate it at startup and persist committed change sets through commit hooks.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agroqc/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Product aliases domain.Product.
	Product = domain.Product
	// Batch aliases domain.Batch.
	Batch = domain.Batch
	// Inspection aliases domain.Inspection.
	Inspection = domain.Inspection
	// SensorReading aliases domain.SensorReading.
	SensorReading = domain.SensorReading
	// LabTest aliases domain.LabTest.
	LabTest = domain.LabTest
	// PackagingTest aliases domain.PackagingTest.
	PackagingTest = domain.PackagingTest
	// Alert aliases domain.Alert.
	Alert = domain.Alert
	// QualityReport aliases domain.QualityReport.
	QualityReport = domain.QualityReport
	// ShipmentTrace aliases domain.ShipmentTrace.
	ShipmentTrace = domain.ShipmentTrace
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	products    map[string]Product
	batches     map[string]Batch
	inspections map[string]Inspection
	readings    map[string]SensorReading
	labTests    map[string]LabTest
	packaging   map[string]PackagingTest
	alerts      map[string]Alert
	reports     map[string]QualityReport
	shipments   map[string]ShipmentTrace
}

// Snapshot captures a point-in-time clone of the store state keyed by record code.
type Snapshot struct {
	Products       map[string]Product       `json:"products"`
	Batches        map[string]Batch         `json:"batches"`
	Inspections    map[string]Inspection    `json:"inspections"`
	SensorReadings map[string]SensorReading `json:"sensor_readings"`
	LabTests       map[string]LabTest       `json:"lab_tests"`
	PackagingTests map[string]PackagingTest `json:"packaging_tests"`
	Alerts         map[string]Alert         `json:"alerts"`
	Reports        map[string]QualityReport `json:"reports"`
	Shipments      map[string]ShipmentTrace `json:"shipments"`
}

func newMemoryState() memoryState {
	return memoryState{
		products:    make(map[string]Product),
		batches:     make(map[string]Batch),
		inspections: make(map[string]Inspection),
		readings:    make(map[string]SensorReading),
		labTests:    make(map[string]LabTest),
		packaging:   make(map[string]PackagingTest),
		alerts:      make(map[string]Alert),
		reports:     make(map[string]QualityReport),
		shipments:   make(map[string]ShipmentTrace),
	}
}

func copyMap[T any](src map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(src))
	for k, v := range src {
		out[k] = clone(v)
	}
	return out
}

func same[T any](v T) T { return v }

func (s memoryState) clone() memoryState {
	return memoryState{
		products:    copyMap(s.products, same[Product]),
		batches:     copyMap(s.batches, same[Batch]),
		inspections: copyMap(s.inspections, same[Inspection]),
		readings:    copyMap(s.readings, same[SensorReading]),
		labTests:    copyMap(s.labTests, same[LabTest]),
		packaging:   copyMap(s.packaging, same[PackagingTest]),
		alerts:      copyMap(s.alerts, cloneAlert),
		reports:     copyMap(s.reports, cloneReport),
		shipments:   copyMap(s.shipments, cloneShipment),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Products:       c.products,
		Batches:        c.batches,
		Inspections:    c.inspections,
		SensorReadings: c.readings,
		LabTests:       c.labTests,
		PackagingTests: c.packaging,
		Alerts:         c.alerts,
		Reports:        c.reports,
		Shipments:      c.shipments,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	return memoryState{
		products:    copyMap(s.Products, same[Product]),
		batches:     copyMap(s.Batches, same[Batch]),
		inspections: copyMap(s.Inspections, same[Inspection]),
		readings:    copyMap(s.SensorReadings, same[SensorReading]),
		labTests:    copyMap(s.LabTests, same[LabTest]),
		packaging:   copyMap(s.PackagingTests, same[PackagingTest]),
		alerts:      copyMap(s.Alerts, cloneAlert),
		reports:     copyMap(s.Reports, cloneReport),
		shipments:   copyMap(s.Shipments, cloneShipment),
	}
}

func cloneAlert(a Alert) Alert {
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		a.ResolvedAt = &t
	}
	return a
}

func cloneReport(r QualityReport) QualityReport {
	r.Certifications = r.Certifications.Clone()
	return r
}

func cloneShipment(s ShipmentTrace) ShipmentTrace {
	s.RequiredCerts = s.RequiredCerts.Clone()
	s.Documents = s.Documents.Clone()
	return s
}

// CommitHook runs after rules pass and before the transaction state is
// published. A hook error aborts the commit.
type CommitHook func(ctx context.Context, changes []Change) error

// Store provides an in-memory transactional store for the quality records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	hooks  []CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the record timestamp source.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

// OnCommit registers a hook invoked with the change set of every transaction
// that passes rule evaluation.
func (s *Store) OnCommit(hook CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Close releases nothing; it satisfies domain.PersistentStore.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.changes) > 0 {
		for _, hook := range s.hooks {
			if err := hook(ctx, tx.changes); err != nil {
				return result, fmt.Errorf("commit: %w", err)
			}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func requireCode(entity domain.EntityType, code string) error {
	if code == "" {
		return domain.ValidationError{Entity: entity, Fields: []domain.FieldError{{Field: "code", Message: "is required"}}}
	}
	return nil
}

// stamp assigns a fresh ID on every create; IDs supplied by callers are
// discarded.
func (tx *transaction) stamp(b *domain.Base) {
	b.ID = tx.store.newID()
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
}

func (tx *transaction) requireBatch(code string) error {
	if _, ok := tx.state.batches[code]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityBatch, ID: code}
	}
	return nil
}

// CreateProduct stores a new product.
func (tx *transaction) CreateProduct(p Product) (Product, error) {
	if err := requireCode(domain.EntityProduct, p.Code); err != nil {
		return Product{}, err
	}
	if _, exists := tx.state.products[p.Code]; exists {
		return Product{}, domain.ConflictError{Entity: domain.EntityProduct, Field: "code", Value: p.Code}
	}
	tx.stamp(&p.Base)
	tx.state.products[p.Code] = p
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdateProduct mutates a product. The code is immutable.
func (tx *transaction) UpdateProduct(code string, mutator func(*Product) error) (Product, error) {
	current, ok := tx.state.products[code]
	if !ok {
		return Product{}, domain.ErrNotFound{Entity: domain.EntityProduct, ID: code}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Product{}, err
	}
	current.Code = code
	current.Base.ID = before.ID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.products[code] = current
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteProduct removes a product that no batch references.
func (tx *transaction) DeleteProduct(code string) error {
	current, ok := tx.state.products[code]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityProduct, ID: code}
	}
	refs := 0
	for _, b := range tx.state.batches {
		if b.ProductCode == code {
			refs++
		}
	}
	if refs > 0 {
		return domain.ReferencedError{Entity: domain.EntityProduct, ID: code, Dependents: domain.EntityBatch, Count: refs}
	}
	delete(tx.state.products, code)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateBatch stores a new batch for an existing product.
func (tx *transaction) CreateBatch(b Batch) (Batch, error) {
	if err := requireCode(domain.EntityBatch, b.Code); err != nil {
		return Batch{}, err
	}
	if _, exists := tx.state.batches[b.Code]; exists {
		return Batch{}, domain.ConflictError{Entity: domain.EntityBatch, Field: "code", Value: b.Code}
	}
	if _, ok := tx.state.products[b.ProductCode]; !ok {
		return Batch{}, domain.ErrNotFound{Entity: domain.EntityProduct, ID: b.ProductCode}
	}
	if b.Status == "" {
		b.Status = domain.BatchNew
	}
	tx.stamp(&b.Base)
	tx.state.batches[b.Code] = b
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionCreate, After: b})
	return b, nil
}

// UpdateBatch mutates a batch. The code is immutable and a changed product
// reference must exist.
func (tx *transaction) UpdateBatch(code string, mutator func(*Batch) error) (Batch, error) {
	current, ok := tx.state.batches[code]
	if !ok {
		return Batch{}, domain.ErrNotFound{Entity: domain.EntityBatch, ID: code}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Batch{}, err
	}
	if _, ok := tx.state.products[current.ProductCode]; !ok {
		return Batch{}, domain.ErrNotFound{Entity: domain.EntityProduct, ID: current.ProductCode}
	}
	current.Code = code
	current.Base.ID = before.ID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.batches[code] = current
	tx.recordChange(Change{Entity: domain.EntityBatch, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreateInspection stores an inspection for an existing batch.
func (tx *transaction) CreateInspection(i Inspection) (Inspection, error) {
	if err := requireCode(domain.EntityInspection, i.Code); err != nil {
		return Inspection{}, err
	}
	if _, exists := tx.state.inspections[i.Code]; exists {
		return Inspection{}, domain.ConflictError{Entity: domain.EntityInspection, Field: "code", Value: i.Code}
	}
	if err := tx.requireBatch(i.BatchCode); err != nil {
		return Inspection{}, err
	}
	tx.stamp(&i.Base)
	tx.state.inspections[i.Code] = i
	tx.recordChange(Change{Entity: domain.EntityInspection, Action: domain.ActionCreate, After: i})
	return i, nil
}

// CreateSensorReading stores a sensor reading for an existing batch.
func (tx *transaction) CreateSensorReading(r SensorReading) (SensorReading, error) {
	if err := requireCode(domain.EntitySensorReading, r.Code); err != nil {
		return SensorReading{}, err
	}
	if _, exists := tx.state.readings[r.Code]; exists {
		return SensorReading{}, domain.ConflictError{Entity: domain.EntitySensorReading, Field: "code", Value: r.Code}
	}
	if err := tx.requireBatch(r.BatchCode); err != nil {
		return SensorReading{}, err
	}
	tx.stamp(&r.Base)
	tx.state.readings[r.Code] = r
	tx.recordChange(Change{Entity: domain.EntitySensorReading, Action: domain.ActionCreate, After: r})
	return r, nil
}

// CreateLabTest stores a lab test for an existing batch.
func (tx *transaction) CreateLabTest(l LabTest) (LabTest, error) {
	if err := requireCode(domain.EntityLabTest, l.Code); err != nil {
		return LabTest{}, err
	}
	if _, exists := tx.state.labTests[l.Code]; exists {
		return LabTest{}, domain.ConflictError{Entity: domain.EntityLabTest, Field: "code", Value: l.Code}
	}
	if err := tx.requireBatch(l.BatchCode); err != nil {
		return LabTest{}, err
	}
	tx.stamp(&l.Base)
	tx.state.labTests[l.Code] = l
	tx.recordChange(Change{Entity: domain.EntityLabTest, Action: domain.ActionCreate, After: l})
	return l, nil
}

// CreatePackagingTest stores a packaging evaluation for an existing batch.
func (tx *transaction) CreatePackagingTest(p PackagingTest) (PackagingTest, error) {
	if err := requireCode(domain.EntityPackagingTest, p.Code); err != nil {
		return PackagingTest{}, err
	}
	if _, exists := tx.state.packaging[p.Code]; exists {
		return PackagingTest{}, domain.ConflictError{Entity: domain.EntityPackagingTest, Field: "code", Value: p.Code}
	}
	if err := tx.requireBatch(p.BatchCode); err != nil {
		return PackagingTest{}, err
	}
	tx.stamp(&p.Base)
	tx.state.packaging[p.Code] = p
	tx.recordChange(Change{Entity: domain.EntityPackagingTest, Action: domain.ActionCreate, After: p})
	return p, nil
}

// CreateAlert stores an alert for an existing batch.
func (tx *transaction) CreateAlert(a Alert) (Alert, error) {
	if err := requireCode(domain.EntityAlert, a.Code); err != nil {
		return Alert{}, err
	}
	if _, exists := tx.state.alerts[a.Code]; exists {
		return Alert{}, domain.ConflictError{Entity: domain.EntityAlert, Field: "code", Value: a.Code}
	}
	if err := tx.requireBatch(a.BatchCode); err != nil {
		return Alert{}, err
	}
	if a.State == "" {
		a.State = domain.AlertActive
	}
	tx.stamp(&a.Base)
	tx.state.alerts[a.Code] = cloneAlert(a)
	tx.recordChange(Change{Entity: domain.EntityAlert, Action: domain.ActionCreate, After: cloneAlert(a)})
	return cloneAlert(a), nil
}

// UpdateAlert mutates an alert. Code and batch are immutable.
func (tx *transaction) UpdateAlert(code string, mutator func(*Alert) error) (Alert, error) {
	current, ok := tx.state.alerts[code]
	if !ok {
		return Alert{}, domain.ErrNotFound{Entity: domain.EntityAlert, ID: code}
	}
	before := cloneAlert(current)
	current = cloneAlert(current)
	if err := mutator(&current); err != nil {
		return Alert{}, err
	}
	current.Code = code
	current.BatchCode = before.BatchCode
	current.Base.ID = before.ID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.alerts[code] = cloneAlert(current)
	tx.recordChange(Change{Entity: domain.EntityAlert, Action: domain.ActionUpdate, Before: before, After: cloneAlert(current)})
	return cloneAlert(current), nil
}

// CreateQualityReport stores the single report of a batch.
func (tx *transaction) CreateQualityReport(r QualityReport) (QualityReport, error) {
	if err := requireCode(domain.EntityQualityReport, r.Code); err != nil {
		return QualityReport{}, err
	}
	if _, exists := tx.state.reports[r.Code]; exists {
		return QualityReport{}, domain.ConflictError{Entity: domain.EntityQualityReport, Field: "code", Value: r.Code}
	}
	if err := tx.requireBatch(r.BatchCode); err != nil {
		return QualityReport{}, err
	}
	for _, existing := range tx.state.reports {
		if existing.BatchCode == r.BatchCode {
			return QualityReport{}, domain.ConflictError{Entity: domain.EntityQualityReport, Field: "batch_code", Value: r.BatchCode}
		}
	}
	tx.stamp(&r.Base)
	tx.state.reports[r.Code] = cloneReport(r)
	tx.recordChange(Change{Entity: domain.EntityQualityReport, Action: domain.ActionCreate, After: cloneReport(r)})
	return cloneReport(r), nil
}

// CreateShipmentTrace stores a shipment trace for an existing batch.
func (tx *transaction) CreateShipmentTrace(s ShipmentTrace) (ShipmentTrace, error) {
	if err := requireCode(domain.EntityShipmentTrace, s.Code); err != nil {
		return ShipmentTrace{}, err
	}
	if _, exists := tx.state.shipments[s.Code]; exists {
		return ShipmentTrace{}, domain.ConflictError{Entity: domain.EntityShipmentTrace, Field: "code", Value: s.Code}
	}
	if err := tx.requireBatch(s.BatchCode); err != nil {
		return ShipmentTrace{}, err
	}
	if s.State == "" {
		s.State = domain.ShipmentPreparation
	}
	tx.stamp(&s.Base)
	tx.state.shipments[s.Code] = cloneShipment(s)
	tx.recordChange(Change{Entity: domain.EntityShipmentTrace, Action: domain.ActionCreate, After: cloneShipment(s)})
	return cloneShipment(s), nil
}

// UpdateShipmentTrace mutates a shipment trace. Code and batch are immutable.
func (tx *transaction) UpdateShipmentTrace(code string, mutator func(*ShipmentTrace) error) (ShipmentTrace, error) {
	current, ok := tx.state.shipments[code]
	if !ok {
		return ShipmentTrace{}, domain.ErrNotFound{Entity: domain.EntityShipmentTrace, ID: code}
	}
	before := cloneShipment(current)
	current = cloneShipment(current)
	if err := mutator(&current); err != nil {
		return ShipmentTrace{}, err
	}
	current.Code = code
	current.BatchCode = before.BatchCode
	current.Base.ID = before.ID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.shipments[code] = cloneShipment(current)
	tx.recordChange(Change{Entity: domain.EntityShipmentTrace, Action: domain.ActionUpdate, Before: before, After: cloneShipment(current)})
	return cloneShipment(current), nil
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func listOf[T any](m map[string]T, clone func(T) T, key func(T) (time.Time, string)) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	sort.Slice(out, func(i, j int) bool {
		ti, ci := key(out[i])
		tj, cj := key(out[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ci < cj
	})
	return out
}

func productKey(p Product) (time.Time, string)         { return p.CreatedAt, p.Code }
func batchKey(b Batch) (time.Time, string)             { return b.CreatedAt, b.Code }
func inspectionKey(i Inspection) (time.Time, string)   { return i.CreatedAt, i.Code }
func readingKey(r SensorReading) (time.Time, string)   { return r.CreatedAt, r.Code }
func labTestKey(l LabTest) (time.Time, string)         { return l.CreatedAt, l.Code }
func packagingKey(p PackagingTest) (time.Time, string) { return p.CreatedAt, p.Code }
func alertKey(a Alert) (time.Time, string)             { return a.CreatedAt, a.Code }
func reportKey(r QualityReport) (time.Time, string)    { return r.CreatedAt, r.Code }
func shipmentKey(s ShipmentTrace) (time.Time, string)  { return s.CreatedAt, s.Code }

// ListProducts returns all products.
func (v transactionView) ListProducts() []Product {
	return listOf(v.state.products, same[Product], productKey)
}

// FindProduct retrieves a product by code.
func (v transactionView) FindProduct(code string) (Product, bool) {
	p, ok := v.state.products[code]
	return p, ok
}

// ListBatches returns all batches.
func (v transactionView) ListBatches() []Batch {
	return listOf(v.state.batches, same[Batch], batchKey)
}

// FindBatch retrieves a batch by code.
func (v transactionView) FindBatch(code string) (Batch, bool) {
	b, ok := v.state.batches[code]
	return b, ok
}

// ListInspections returns all inspections.
func (v transactionView) ListInspections() []Inspection {
	return listOf(v.state.inspections, same[Inspection], inspectionKey)
}

// ListSensorReadings returns all sensor readings.
func (v transactionView) ListSensorReadings() []SensorReading {
	return listOf(v.state.readings, same[SensorReading], readingKey)
}

// ListLabTests returns all lab tests.
func (v transactionView) ListLabTests() []LabTest {
	return listOf(v.state.labTests, same[LabTest], labTestKey)
}

// ListPackagingTests returns all packaging evaluations.
func (v transactionView) ListPackagingTests() []PackagingTest {
	return listOf(v.state.packaging, same[PackagingTest], packagingKey)
}

// ListAlerts returns all alerts.
func (v transactionView) ListAlerts() []Alert {
	return listOf(v.state.alerts, cloneAlert, alertKey)
}

// FindAlert retrieves an alert by code.
func (v transactionView) FindAlert(code string) (Alert, bool) {
	a, ok := v.state.alerts[code]
	if !ok {
		return Alert{}, false
	}
	return cloneAlert(a), true
}

// ListQualityReports returns all reports.
func (v transactionView) ListQualityReports() []QualityReport {
	return listOf(v.state.reports, cloneReport, reportKey)
}

// FindQualityReport retrieves a report by code.
func (v transactionView) FindQualityReport(code string) (QualityReport, bool) {
	r, ok := v.state.reports[code]
	if !ok {
		return QualityReport{}, false
	}
	return cloneReport(r), true
}

// ListShipmentTraces returns all shipment traces.
func (v transactionView) ListShipmentTraces() []ShipmentTrace {
	return listOf(v.state.shipments, cloneShipment, shipmentKey)
}

// FindShipmentTrace retrieves a shipment trace by code.
func (v transactionView) FindShipmentTrace(code string) (ShipmentTrace, bool) {
	s, ok := v.state.shipments[code]
	if !ok {
		return ShipmentTrace{}, false
	}
	return cloneShipment(s), true
}

// BatchRecords gathers every record attached to a batch.
func (v transactionView) BatchRecords(code string) (domain.BatchRecords, bool) {
	b, ok := v.state.batches[code]
	if !ok {
		return domain.BatchRecords{}, false
	}
	out := domain.BatchRecords{
		Batch:          b,
		Inspections:    []Inspection{},
		SensorReadings: []SensorReading{},
		LabTests:       []LabTest{},
		PackagingTests: []PackagingTest{},
		Alerts:         []Alert{},
		Shipments:      []ShipmentTrace{},
	}
	if p, ok := v.state.products[b.ProductCode]; ok {
		out.Product = &p
	}
	for _, i := range v.ListInspections() {
		if i.BatchCode == code {
			out.Inspections = append(out.Inspections, i)
		}
	}
	for _, r := range v.ListSensorReadings() {
		if r.BatchCode == code {
			out.SensorReadings = append(out.SensorReadings, r)
		}
	}
	for _, l := range v.ListLabTests() {
		if l.BatchCode == code {
			out.LabTests = append(out.LabTests, l)
		}
	}
	for _, p := range v.ListPackagingTests() {
		if p.BatchCode == code {
			out.PackagingTests = append(out.PackagingTests, p)
		}
	}
	for _, a := range v.ListAlerts() {
		if a.BatchCode == code {
			out.Alerts = append(out.Alerts, a)
		}
	}
	for _, r := range v.ListQualityReports() {
		if r.BatchCode == code {
			report := r
			out.Report = &report
		}
	}
	for _, s := range v.ListShipmentTraces() {
		if s.BatchCode == code {
			out.Shipments = append(out.Shipments, s)
		}
	}
	return out, true
}
