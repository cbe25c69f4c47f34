package sqlstore

import (
	"fmt"
	"strings"

	"agroqc/pkg/domain"
)

// Column kinds a Dialect maps onto concrete SQL types.
const (
	KindText    = "text"
	KindReal    = "real"
	KindBool    = "bool"
	KindTime    = "time"
	KindDecimal = "decimal"
	KindList    = "list"
)

type column struct {
	name    string
	kind    string
	notNull bool
	unique  bool
	ref     string // referenced table(code)
}

type table struct {
	name    string
	entity  domain.EntityType
	columns []column
}

func baseColumns(extra ...column) []column {
	cols := []column{
		{name: "id", kind: KindText, notNull: true},
		{name: "code", kind: KindText, notNull: true, unique: true},
		{name: "created_at", kind: KindTime, notNull: true},
		{name: "updated_at", kind: KindTime, notNull: true},
	}
	return append(cols, extra...)
}

func batchRef() column {
	return column{name: "batch_code", kind: KindText, notNull: true, ref: "batches"}
}

// tables lists the nine record tables in dependency order. Column names match
// the db tags of the domain records.
var tables = []table{
	{name: "products", entity: domain.EntityProduct, columns: baseColumns(
		column{name: "name", kind: KindText, notNull: true},
		column{name: "variety", kind: KindText, notNull: true},
		column{name: "category", kind: KindText},
		column{name: "origin_field", kind: KindText},
		column{name: "season", kind: KindText},
		column{name: "state", kind: KindText},
		column{name: "registered_on", kind: KindTime},
	)},
	{name: "batches", entity: domain.EntityBatch, columns: baseColumns(
		column{name: "product_code", kind: KindText, notNull: true, ref: "products"},
		column{name: "harvest_date", kind: KindTime, notNull: true},
		column{name: "quantity_kg", kind: KindDecimal, notNull: true},
		column{name: "origin_field", kind: KindText, notNull: true},
		column{name: "owner", kind: KindText, notNull: true},
		column{name: "status", kind: KindText, notNull: true},
	)},
	{name: "inspections", entity: domain.EntityInspection, columns: baseColumns(
		batchRef(),
		column{name: "inspected_at", kind: KindTime},
		column{name: "inspector", kind: KindText, notNull: true},
		column{name: "color_rating", kind: KindText},
		column{name: "shape_rating", kind: KindText},
		column{name: "size_rating", kind: KindText},
		column{name: "defect_notes", kind: KindText},
		column{name: "conformity_pct", kind: KindReal},
		column{name: "result", kind: KindText},
		column{name: "notes", kind: KindText},
		column{name: "processing_minutes", kind: KindReal},
	)},
	{name: "sensor_readings", entity: domain.EntitySensorReading, columns: baseColumns(
		batchRef(),
		column{name: "read_at", kind: KindTime},
		column{name: "temperature_c", kind: KindReal},
		column{name: "weight_kg", kind: KindReal},
		column{name: "humidity_pct", kind: KindReal},
		column{name: "ph", kind: KindReal},
		column{name: "brix", kind: KindReal},
		column{name: "sensor_state", kind: KindText, notNull: true},
		column{name: "alert_raised", kind: KindBool},
	)},
	{name: "lab_tests", entity: domain.EntityLabTest, columns: baseColumns(
		batchRef(),
		column{name: "tested_at", kind: KindTime},
		column{name: "analyst", kind: KindText, notNull: true},
		column{name: "acidity", kind: KindReal},
		column{name: "soluble_solids", kind: KindReal},
		column{name: "firmness", kind: KindReal},
		column{name: "moisture_pct", kind: KindReal},
		column{name: "pesticide_residue", kind: KindText, notNull: true},
		column{name: "microbiology", kind: KindText, notNull: true},
		column{name: "result", kind: KindText},
		column{name: "organic_certified", kind: KindBool},
	)},
	{name: "packaging_tests", entity: domain.EntityPackagingTest, columns: baseColumns(
		batchRef(),
		column{name: "evaluated_at", kind: KindTime},
		column{name: "container_type", kind: KindText, notNull: true},
		column{name: "material", kind: KindText, notNull: true},
		column{name: "capacity", kind: KindText},
		column{name: "seal_passed", kind: KindBool},
		column{name: "resistance_passed", kind: KindBool},
		column{name: "compatibility_passed", kind: KindBool},
		column{name: "result", kind: KindText},
		column{name: "notes", kind: KindText},
	)},
	{name: "alerts", entity: domain.EntityAlert, columns: baseColumns(
		batchRef(),
		column{name: "type", kind: KindText, notNull: true},
		column{name: "level", kind: KindText, notNull: true},
		column{name: "message", kind: KindText, notNull: true},
		column{name: "parameter", kind: KindText, notNull: true},
		column{name: "detected_value", kind: KindReal},
		column{name: "limit_value", kind: KindReal},
		column{name: "raised_at", kind: KindTime},
		column{name: "state", kind: KindText, notNull: true},
		column{name: "action_taken", kind: KindText},
		column{name: "resolved_at", kind: KindTime},
	)},
	{name: "quality_reports", entity: domain.EntityQualityReport, columns: baseColumns(
		column{name: "batch_code", kind: KindText, notNull: true, unique: true, ref: "batches"},
		column{name: "issued_at", kind: KindTime},
		column{name: "inspection_result", kind: KindText},
		column{name: "sensor_status", kind: KindText},
		column{name: "lab_result", kind: KindText},
		column{name: "packaging_result", kind: KindText},
		column{name: "decision", kind: KindText, notNull: true},
		column{name: "quality_pct", kind: KindReal},
		column{name: "certifications", kind: KindList},
		column{name: "destination", kind: KindText},
		column{name: "approver", kind: KindText},
	)},
	{name: "shipment_traces", entity: domain.EntityShipmentTrace, columns: baseColumns(
		batchRef(),
		column{name: "destination_country", kind: KindText, notNull: true},
		column{name: "client", kind: KindText, notNull: true},
		column{name: "required_certs", kind: KindList},
		column{name: "container_number", kind: KindText},
		column{name: "ship_date", kind: KindTime},
		column{name: "port", kind: KindText},
		column{name: "documents", kind: KindList},
		column{name: "state", kind: KindText, notNull: true},
	)},
}

func tableFor(entity domain.EntityType) (table, bool) {
	for _, t := range tables {
		if t.entity == entity {
			return t, true
		}
	}
	return table{}, false
}

func (t table) columnNames() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		names = append(names, c.name)
	}
	return names
}

func (t table) createStatement(types map[string]string) string {
	defs := make([]string, 0, len(t.columns)+1)
	for _, c := range t.columns {
		def := c.name + " " + types[c.kind]
		if c.name == "id" {
			def += " PRIMARY KEY"
		}
		if c.notNull {
			def += " NOT NULL"
		}
		if c.unique {
			def += " UNIQUE"
		}
		if c.ref != "" {
			def += " REFERENCES " + c.ref + "(code)"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.name, strings.Join(defs, ",\n\t"))
}

func (t table) indexStatements() []string {
	var out []string
	for _, c := range t.columns {
		if c.ref != "" && !c.unique {
			out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", t.name, c.name, t.name, c.name))
		}
	}
	return out
}

func (t table) selectQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at, code", strings.Join(t.columnNames(), ", "), t.name)
}

func (t table) insertQuery() string {
	names := t.columnNames()
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)", t.name, strings.Join(names, ", "), strings.Join(names, ", :"))
}

func (t table) updateQuery() string {
	sets := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if c.name == "id" || c.name == "code" || c.name == "created_at" {
			continue
		}
		sets = append(sets, c.name+" = :"+c.name)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE code = :code", t.name, strings.Join(sets, ", "))
}

func (t table) deleteQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE code = ?", t.name)
}

// Statements renders the idempotent schema for a dialect's column types.
func Statements(types map[string]string) []string {
	var out []string
	for _, t := range tables {
		out = append(out, t.createStatement(types))
		out = append(out, t.indexStatements()...)
	}
	return out
}

// TableNames lists the record tables in dependency order.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.name)
	}
	return names
}
