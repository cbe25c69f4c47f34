package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agroqc/internal/aggregate"
	"agroqc/pkg/domain"
)

// SummaryParam describes an accepted summary parameter.
type SummaryParam struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
	Default     string   `json:"default,omitempty"`
}

// SummaryColumn describes one column of a summary result.
type SummaryColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Summary describes a named aggregate over the stored records.
type Summary struct {
	Key         string          `json:"key"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Params      []SummaryParam  `json:"params,omitempty"`
	Columns     []SummaryColumn `json:"columns"`
}

// SummaryRow maps column names to values. Means are aggregate.Mean and
// render NaN as null in JSON.
type SummaryRow map[string]any

// SummaryResult is a tabular summary.
type SummaryResult struct {
	Summary     Summary           `json:"summary"`
	Params      map[string]string `json:"params,omitempty"`
	Rows        []SummaryRow      `json:"rows"`
	GeneratedAt time.Time         `json:"generated_at"`
}

type summaryDefinition struct {
	Summary
	run func(v TransactionView, params map[string]string, now time.Time) ([]SummaryRow, error)
}

var bucketParam = SummaryParam{
	Name:        "bucket",
	Description: "calendar period used to group timestamps",
	Enum:        []string{string(aggregate.BucketMonth), string(aggregate.BucketWeek), string(aggregate.BucketDay)},
	Default:     string(aggregate.BucketMonth),
}

func (s *Service) summaryCatalog() map[string]summaryDefinition {
	defs := []summaryDefinition{
		{
			Summary: Summary{
				Key:         "dashboard",
				Title:       "Dashboard",
				Description: "Batches in process, inspections today, active alerts and approvals today.",
				Columns: []SummaryColumn{
					{"batches_in_process", "int"}, {"inspections_today", "int"},
					{"active_alerts", "int"}, {"approvals_today", "int"},
				},
			},
			run: dashboardSummary,
		},
		{
			Summary: Summary{
				Key:         "quality-by-product",
				Title:       "Quality by product",
				Description: "Approved and rejected report counts per product name.",
				Columns:     []SummaryColumn{{"product", "string"}, {"approved", "int"}, {"rejected", "int"}},
			},
			run: qualityByProduct,
		},
		{
			Summary: Summary{
				Key:         "processing-time-by-inspector",
				Title:       "Processing time by inspector",
				Description: "Mean inspection processing minutes per inspector.",
				Columns:     []SummaryColumn{{"inspector", "string"}, {"mean_minutes", "mean"}},
			},
			run: processingTimeByInspector,
		},
		{
			Summary: Summary{
				Key:         "inspections-by-period",
				Title:       "Inspections by period",
				Description: "Inspection counts per calendar bucket.",
				Params:      []SummaryParam{bucketParam},
				Columns:     []SummaryColumn{{"period", "string"}, {"inspections", "int"}},
			},
			run: inspectionsByPeriod,
		},
		{
			Summary: Summary{
				Key:         "alerts-by-parameter",
				Title:       "Alerts by parameter",
				Description: "Alert counts per affected parameter and state.",
				Columns:     []SummaryColumn{{"parameter", "string"}, {"state", "string"}, {"alerts", "int"}},
			},
			run: alertsByParameter,
		},
		{
			Summary: Summary{
				Key:         "batches-by-status",
				Title:       "Batches by status",
				Description: "Batch counts per lifecycle status.",
				Columns:     []SummaryColumn{{"status", "string"}, {"batches", "int"}},
			},
			run: countSummary("status", "batches", func(v TransactionView) []string {
				return keysOf(v.ListBatches(), func(b Batch) string { return string(b.Status) })
			}),
		},
		{
			Summary: Summary{
				Key:         "batches-by-area",
				Title:       "Batches by area",
				Description: "Batch counts per origin field.",
				Columns:     []SummaryColumn{{"area", "string"}, {"batches", "int"}},
			},
			run: countSummary("area", "batches", func(v TransactionView) []string {
				return keysOf(v.ListBatches(), func(b Batch) string { return b.OriginField })
			}),
		},
		{
			Summary: Summary{
				Key:         "reports-by-certification",
				Title:       "Reports by certification",
				Description: "Quality report counts per listed certification (audit norm).",
				Columns:     []SummaryColumn{{"certification", "string"}, {"reports", "int"}},
			},
			run: countSummary("certification", "reports", func(v TransactionView) []string {
				var keys []string
				for _, r := range v.ListQualityReports() {
					keys = append(keys, r.Certifications...)
				}
				return keys
			}),
		},
		{
			Summary: Summary{
				Key:         "shipments-by-country",
				Title:       "Shipments by country",
				Description: "Shipment trace counts per destination country.",
				Columns:     []SummaryColumn{{"country", "string"}, {"shipments", "int"}},
			},
			run: countSummary("country", "shipments", func(v TransactionView) []string {
				return keysOf(v.ListShipmentTraces(), func(t ShipmentTrace) string { return t.DestinationCountry })
			}),
		},
		{
			Summary: Summary{
				Key:         "sensor-means-by-batch",
				Title:       "Sensor means by batch",
				Description: "Mean temperature and humidity per batch.",
				Columns: []SummaryColumn{
					{"batch", "string"}, {"mean_temperature_c", "mean"}, {"mean_humidity_pct", "mean"},
				},
			},
			run: sensorMeansByBatch,
		},
	}
	out := make(map[string]summaryDefinition, len(defs))
	for _, d := range defs {
		out[d.Key] = d
	}
	return out
}

// Summaries lists the available summaries ordered by key.
func (s *Service) Summaries() []Summary {
	out := make([]Summary, 0, len(s.catalog))
	for _, d := range s.catalog {
		out = append(out, d.Summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Summary returns the definition registered under key.
func (s *Service) Summary(key string) (Summary, bool) {
	d, ok := s.catalog[key]
	return d.Summary, ok
}

// ValidateSummaryParams checks params against the summary registered under
// key without computing it.
func (s *Service) ValidateSummaryParams(key string, params map[string]string) error {
	def, ok := s.catalog[key]
	if !ok {
		return domain.ErrNotFound{Entity: EntitySummary, ID: key}
	}
	return validateSummaryParams(def.Summary, params)
}

// RunSummary computes the summary registered under key.
func (s *Service) RunSummary(ctx context.Context, key string, params map[string]string) (SummaryResult, error) {
	def, ok := s.catalog[key]
	if !ok {
		return SummaryResult{}, domain.ErrNotFound{Entity: EntitySummary, ID: key}
	}
	if err := validateSummaryParams(def.Summary, params); err != nil {
		return SummaryResult{}, err
	}
	now := s.now()
	result := SummaryResult{Summary: def.Summary, Params: params, GeneratedAt: now}
	err := s.view(ctx, "run_summary", func(v TransactionView) error {
		rows, err := def.run(v, params, now)
		if err != nil {
			return err
		}
		result.Rows = rows
		return nil
	})
	if err != nil {
		return SummaryResult{}, err
	}
	if result.Rows == nil {
		result.Rows = []SummaryRow{}
	}
	return result, nil
}

func validateSummaryParams(def Summary, params map[string]string) error {
	var fields []domain.FieldError
	known := make(map[string]SummaryParam, len(def.Params))
	for _, p := range def.Params {
		known[p.Name] = p
	}
	for name, value := range params {
		p, ok := known[name]
		if !ok {
			fields = append(fields, domain.FieldError{Field: name, Message: "is not accepted by summary " + def.Key})
			continue
		}
		if len(p.Enum) > 0 && value != "" && !contains(p.Enum, value) {
			fields = append(fields, domain.FieldError{Field: name, Message: fmt.Sprintf("must be one of %v", p.Enum)})
		}
	}
	if len(fields) > 0 {
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return domain.ValidationError{Entity: EntitySummary, Fields: fields}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func keysOf[T any](items []T, key func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = key(item)
	}
	return out
}

func countSummary(keyCol, countCol string, keys func(TransactionView) []string) func(TransactionView, map[string]string, time.Time) ([]SummaryRow, error) {
	return func(v TransactionView, _ map[string]string, _ time.Time) ([]SummaryRow, error) {
		counts := aggregate.CountBy(keys(v), func(k string) string { return k })
		rows := make([]SummaryRow, 0, len(counts))
		for _, c := range aggregate.Counts(counts) {
			rows = append(rows, SummaryRow{keyCol: c.Key, countCol: c.Count})
		}
		return rows, nil
	}
}

func sameDay(a, b time.Time) bool {
	return aggregate.BucketDay.Truncate(a).Equal(aggregate.BucketDay.Truncate(b))
}

func dashboardSummary(v TransactionView, _ map[string]string, now time.Time) ([]SummaryRow, error) {
	var inProcess, inspections, alerts, approvals int
	for _, b := range v.ListBatches() {
		if b.Status == domain.BatchInProcess {
			inProcess++
		}
	}
	for _, i := range v.ListInspections() {
		if sameDay(i.InspectedAt, now) {
			inspections++
		}
	}
	for _, a := range v.ListAlerts() {
		if a.State == domain.AlertActive {
			alerts++
		}
	}
	for _, r := range v.ListQualityReports() {
		if r.Decision == domain.ResultApproved && sameDay(r.IssuedAt, now) {
			approvals++
		}
	}
	return []SummaryRow{{
		"batches_in_process": inProcess,
		"inspections_today":  inspections,
		"active_alerts":      alerts,
		"approvals_today":    approvals,
	}}, nil
}

func qualityByProduct(v TransactionView, _ map[string]string, _ time.Time) ([]SummaryRow, error) {
	productOf := func(batchCode string) string {
		b, ok := v.FindBatch(batchCode)
		if !ok {
			return batchCode
		}
		if p, ok := v.FindProduct(b.ProductCode); ok {
			return p.Name
		}
		return b.ProductCode
	}
	type key struct {
		product  string
		decision domain.CheckResult
	}
	var decided []domain.QualityReport
	for _, r := range v.ListQualityReports() {
		if r.Decision == domain.ResultApproved || r.Decision == domain.ResultRejected {
			decided = append(decided, r)
		}
	}
	counts := aggregate.CountBy(decided, func(r domain.QualityReport) key {
		return key{product: productOf(r.BatchCode), decision: r.Decision}
	})
	products := make(map[string]struct{})
	for k := range counts {
		products[k.product] = struct{}{}
	}
	names := make([]string, 0, len(products))
	for name := range products {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]SummaryRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, SummaryRow{
			"product":  name,
			"approved": counts[key{name, domain.ResultApproved}],
			"rejected": counts[key{name, domain.ResultRejected}],
		})
	}
	return rows, nil
}

func processingTimeByInspector(v TransactionView, _ map[string]string, _ time.Time) ([]SummaryRow, error) {
	means := aggregate.MeanBy(v.ListInspections(),
		func(i Inspection) string { return i.Inspector },
		func(i Inspection) (float64, bool) { return i.ProcessingMinutes, true },
	)
	rows := make([]SummaryRow, 0, len(means))
	for _, avg := range aggregate.Averages(means) {
		rows = append(rows, SummaryRow{"inspector": avg.Key, "mean_minutes": avg.Mean})
	}
	return rows, nil
}

func inspectionsByPeriod(v TransactionView, params map[string]string, _ time.Time) ([]SummaryRow, error) {
	bucket, ok := aggregate.ParseBucket(params["bucket"])
	if !ok {
		return nil, domain.ValidationError{Entity: EntitySummary, Fields: []domain.FieldError{{Field: "bucket", Message: "is not a known bucket"}}}
	}
	counts := aggregate.CountBy(v.ListInspections(), func(i Inspection) string { return bucket.Label(i.InspectedAt) })
	rows := make([]SummaryRow, 0, len(counts))
	for _, c := range aggregate.Counts(counts) {
		rows = append(rows, SummaryRow{"period": c.Key, "inspections": c.Count})
	}
	return rows, nil
}

func alertsByParameter(v TransactionView, _ map[string]string, _ time.Time) ([]SummaryRow, error) {
	type key struct {
		parameter string
		state     domain.AlertState
	}
	counts := aggregate.CountBy(v.ListAlerts(), func(a Alert) key { return key{a.Parameter, a.State} })
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].parameter != keys[j].parameter {
			return keys[i].parameter < keys[j].parameter
		}
		return keys[i].state < keys[j].state
	})
	rows := make([]SummaryRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, SummaryRow{"parameter": k.parameter, "state": string(k.state), "alerts": counts[k]})
	}
	return rows, nil
}

func sensorMeansByBatch(v TransactionView, _ map[string]string, _ time.Time) ([]SummaryRow, error) {
	readings := v.ListSensorReadings()
	batchOf := func(r SensorReading) string { return r.BatchCode }
	operational := func(r SensorReading) bool { return r.SensorState != domain.SensorFault }
	temps := aggregate.MeanBy(readings, batchOf, func(r SensorReading) (float64, bool) { return r.TemperatureC, operational(r) })
	hums := aggregate.MeanBy(readings, batchOf, func(r SensorReading) (float64, bool) { return r.HumidityPct, operational(r) })
	rows := make([]SummaryRow, 0, len(temps))
	for _, avg := range aggregate.Averages(temps) {
		rows = append(rows, SummaryRow{
			"batch":              avg.Key,
			"mean_temperature_c": avg.Mean,
			"mean_humidity_pct":  hums[avg.Key],
		})
	}
	return rows, nil
}
