package httpapi

import (
	"context"
	"net/http"

	"agroqc/internal/adapters/apierror"
	"agroqc/internal/core"
	"agroqc/pkg/domain"

	"github.com/gin-gonic/gin"
)

// record binds a check from the body, stores it with fn and answers 201.
func record[T any](c *gin.Context, fn func(context.Context, T) (T, core.Result, error)) {
	var in T
	if !bind(c, &in) {
		return
	}
	created, res, err := fn(c.Request.Context(), in)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	written(c, http.StatusCreated, created, res)
}

// listByBatch answers with fn's records, optionally scoped by ?batch=.
func listByBatch[T any](c *gin.Context, fn func(context.Context, string) ([]T, error)) {
	items, err := fn(c.Request.Context(), c.Query("batch"))
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, items)
}

func (a *API) recordInspection(c *gin.Context)    { record(c, a.svc.RecordInspection) }
func (a *API) recordSensorReading(c *gin.Context) { record(c, a.svc.RecordSensorReading) }
func (a *API) recordLabTest(c *gin.Context)       { record(c, a.svc.RecordLabTest) }
func (a *API) recordPackagingTest(c *gin.Context) { record(c, a.svc.RecordPackagingTest) }
func (a *API) listInspections(c *gin.Context)     { listByBatch(c, a.svc.ListInspections) }
func (a *API) listSensorReadings(c *gin.Context)  { listByBatch(c, a.svc.ListSensorReadings) }
func (a *API) listLabTests(c *gin.Context)        { listByBatch(c, a.svc.ListLabTests) }
func (a *API) listPackagingTests(c *gin.Context)  { listByBatch(c, a.svc.ListPackagingTests) }
func (a *API) listShipments(c *gin.Context)       { listByBatch(c, a.svc.ListShipmentTraces) }
func (a *API) createShipment(c *gin.Context)      { record(c, a.svc.CreateShipmentTrace) }
func (a *API) raiseAlert(c *gin.Context)          { record(c, a.svc.RaiseAlert) }
func (a *API) getAlert(c *gin.Context)            { get(c, a.svc.GetAlert) }
func (a *API) getReport(c *gin.Context)           { get(c, a.svc.GetQualityReport) }
func (a *API) getShipment(c *gin.Context)         { get(c, a.svc.GetShipmentTrace) }

func get[T any](c *gin.Context, fn func(context.Context, string) (T, error)) {
	item, err := fn(c.Request.Context(), c.Param("code"))
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, item)
}

func isAlertState(s domain.AlertState) bool {
	return s == domain.AlertActive || s == domain.AlertResolved
}

func (a *API) listAlerts(c *gin.Context) {
	state, valid := enumQuery(c, domain.EntityAlert, "state", isAlertState)
	if !valid {
		return
	}
	level, valid := enumQuery(c, domain.EntityAlert, "level", domain.AlertLevel.Valid)
	if !valid {
		return
	}
	alerts, err := a.svc.ListAlerts(c.Request.Context(), core.AlertFilter{
		BatchCode: c.Query("batch"),
		State:     state,
		Level:     level,
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, alerts)
}

type resolveRequest struct {
	Action string `json:"action"`
}

func (a *API) resolveAlert(c *gin.Context) {
	var req resolveRequest
	if !bind(c, &req) {
		return
	}
	resolved, res, err := a.svc.ResolveAlert(c.Request.Context(), c.Param("code"), req.Action)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	written(c, http.StatusOK, resolved, res)
}

func (a *API) listReports(c *gin.Context) {
	decision, valid := enumQuery(c, domain.EntityQualityReport, "decision", domain.CheckResult.Valid)
	if !valid {
		return
	}
	reports, err := a.svc.ListQualityReports(c.Request.Context(), decision)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, reports)
}

func (a *API) generateReport(c *gin.Context) {
	var req core.ReportRequest
	if !bind(c, &req) {
		return
	}
	report, res, err := a.svc.GenerateQualityReport(c.Request.Context(), req)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	written(c, http.StatusCreated, report, res)
}

type advanceRequest struct {
	State domain.ShipmentState `json:"state"`
}

func (a *API) advanceShipment(c *gin.Context) {
	var req advanceRequest
	if !bind(c, &req) {
		return
	}
	trace, res, err := a.svc.AdvanceShipment(c.Request.Context(), c.Param("code"), req.State)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	written(c, http.StatusOK, trace, res)
}
