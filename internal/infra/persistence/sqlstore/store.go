// Package sqlstore persists the quality records into relational tables. It
// wraps the in-memory transactional store: committed change sets are written
// row by row inside one SQL transaction before the in-memory state is
// published, and the tables hydrate the memory store at startup.
package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"agroqc/internal/infra/persistence/memory"
	"agroqc/pkg/domain"

	"github.com/jmoiron/sqlx"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// ErrorKind classifies a driver error.
type ErrorKind int

// Driver error classes recognised at the storage boundary.
const (
	ErrorOther ErrorKind = iota
	ErrorUnique
	ErrorForeignKey
)

// Dialect captures what differs between SQL engines.
type Dialect struct {
	Name string
	// Types maps the Kind* column kinds to engine types.
	Types map[string]string
	// Classify maps a driver error to an ErrorKind plus the constraint or
	// column detail reported by the engine.
	Classify func(err error) (ErrorKind, string)
}

// Store is a durable PersistentStore backed by a SQL database.
type Store struct {
	*memory.Store
	db      *sqlx.DB
	dialect Dialect
}

// New wires a store over an open database. Call Migrate then Load before use;
// Open does both.
func New(db *sqlx.DB, dialect Dialect, engine *domain.RulesEngine) *Store {
	s := &Store{Store: memory.NewStore(engine), db: db, dialect: dialect}
	s.Store.OnCommit(s.persist)
	return s
}

// Open wires a store, applies the schema and loads existing rows.
func Open(ctx context.Context, db *sqlx.DB, dialect Dialect, engine *domain.RulesEngine) (*Store, error) {
	s := New(db, dialect, engine)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates missing tables and indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range Statements(s.dialect.Types) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.dialect.Name, err)
		}
	}
	return nil
}

func loadTable[T any](ctx context.Context, db *sqlx.DB, entity domain.EntityType, code func(T) string) (map[string]T, error) {
	t, _ := tableFor(entity)
	var rows []T
	if err := db.SelectContext(ctx, &rows, t.selectQuery()); err != nil {
		return nil, fmt.Errorf("load %s: %w", t.name, err)
	}
	out := make(map[string]T, len(rows))
	for _, r := range rows {
		out[code(r)] = r
	}
	return out, nil
}

// Load replaces the in-memory state with the rows currently stored.
func (s *Store) Load(ctx context.Context) error {
	var snap memory.Snapshot
	var err error
	if snap.Products, err = loadTable(ctx, s.db, domain.EntityProduct, func(v domain.Product) string { return v.Code }); err != nil {
		return err
	}
	if snap.Batches, err = loadTable(ctx, s.db, domain.EntityBatch, func(v domain.Batch) string { return v.Code }); err != nil {
		return err
	}
	if snap.Inspections, err = loadTable(ctx, s.db, domain.EntityInspection, func(v domain.Inspection) string { return v.Code }); err != nil {
		return err
	}
	if snap.SensorReadings, err = loadTable(ctx, s.db, domain.EntitySensorReading, func(v domain.SensorReading) string { return v.Code }); err != nil {
		return err
	}
	if snap.LabTests, err = loadTable(ctx, s.db, domain.EntityLabTest, func(v domain.LabTest) string { return v.Code }); err != nil {
		return err
	}
	if snap.PackagingTests, err = loadTable(ctx, s.db, domain.EntityPackagingTest, func(v domain.PackagingTest) string { return v.Code }); err != nil {
		return err
	}
	if snap.Alerts, err = loadTable(ctx, s.db, domain.EntityAlert, func(v domain.Alert) string { return v.Code }); err != nil {
		return err
	}
	if snap.Reports, err = loadTable(ctx, s.db, domain.EntityQualityReport, func(v domain.QualityReport) string { return v.Code }); err != nil {
		return err
	}
	if snap.Shipments, err = loadTable(ctx, s.db, domain.EntityShipmentTrace, func(v domain.ShipmentTrace) string { return v.Code }); err != nil {
		return err
	}
	s.ImportState(snap)
	return nil
}

// persist writes one committed change set atomically.
func (s *Store) persist(ctx context.Context, changes []domain.Change) (retErr error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, change := range changes {
		if err := s.apply(ctx, tx, change); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, tx *sqlx.Tx, change domain.Change) error {
	t, ok := tableFor(change.Entity)
	if !ok {
		return fmt.Errorf("no table for entity %q", change.Entity)
	}
	var err error
	switch change.Action {
	case domain.ActionCreate:
		_, err = tx.NamedExecContext(ctx, t.insertQuery(), change.After)
	case domain.ActionUpdate:
		_, err = tx.NamedExecContext(ctx, t.updateQuery(), change.After)
	case domain.ActionDelete:
		_, err = tx.ExecContext(ctx, tx.Rebind(t.deleteQuery()), recordCode(change.Before))
	default:
		return fmt.Errorf("unsupported action %q", change.Action)
	}
	if err != nil {
		record := change.After
		if record == nil {
			record = change.Before
		}
		return s.translate(change.Entity, record, err)
	}
	return nil
}

// translate maps constraint failures onto domain errors.
func (s *Store) translate(entity domain.EntityType, record any, err error) error {
	code := recordCode(record)
	if s.dialect.Classify == nil {
		return fmt.Errorf("%s %s: %w", entity, code, err)
	}
	kind, detail := s.dialect.Classify(err)
	switch kind {
	case ErrorUnique:
		field := "code"
		if strings.Contains(detail, "batch_code") {
			field = "batch_code"
		}
		return fmt.Errorf("%w (%v)", domain.ConflictError{Entity: entity, Field: field, Value: code}, err)
	case ErrorForeignKey:
		if entity == domain.EntityProduct {
			return fmt.Errorf("%w (%v)", domain.ReferencedError{Entity: entity, ID: code, Dependents: domain.EntityBatch}, err)
		}
		parent, parentCode := parentOf(record)
		return fmt.Errorf("%w (%v)", domain.ErrNotFound{Entity: parent, ID: parentCode}, err)
	}
	return fmt.Errorf("%s %s: %w", entity, code, err)
}

func recordCode(v any) string {
	switch r := v.(type) {
	case domain.Product:
		return r.Code
	case domain.Batch:
		return r.Code
	case domain.Inspection:
		return r.Code
	case domain.SensorReading:
		return r.Code
	case domain.LabTest:
		return r.Code
	case domain.PackagingTest:
		return r.Code
	case domain.Alert:
		return r.Code
	case domain.QualityReport:
		return r.Code
	case domain.ShipmentTrace:
		return r.Code
	}
	return ""
}

// parentOf names the record a foreign key points at.
func parentOf(v any) (domain.EntityType, string) {
	switch r := v.(type) {
	case domain.Batch:
		return domain.EntityProduct, r.ProductCode
	case domain.Inspection:
		return domain.EntityBatch, r.BatchCode
	case domain.SensorReading:
		return domain.EntityBatch, r.BatchCode
	case domain.LabTest:
		return domain.EntityBatch, r.BatchCode
	case domain.PackagingTest:
		return domain.EntityBatch, r.BatchCode
	case domain.Alert:
		return domain.EntityBatch, r.BatchCode
	case domain.QualityReport:
		return domain.EntityBatch, r.BatchCode
	case domain.ShipmentTrace:
		return domain.EntityBatch, r.BatchCode
	}
	return "", ""
}
