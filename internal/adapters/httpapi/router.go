// Package httpapi exposes the quality-control service as a JSON API under
// /api/v1.
package httpapi

import (
	"net/http"

	"agroqc/internal/adapters/apierror"
	"agroqc/internal/adapters/summaries"
	"agroqc/internal/core"
	"agroqc/pkg/domain"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures the router.
type Options struct {
	// Summaries mounts summary and export routes when set.
	Summaries *summaries.Handler

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	Logger *zap.Logger

	// Compress enables gzip response compression.
	Compress bool
}

// API holds the handlers bound to a service.
type API struct {
	svc *core.Service
}

// NewRouter builds the gin engine serving svc.
func NewRouter(svc *core.Service, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(logger))
	router.Use(Recovery(logger))
	if opts.Compress {
		router.Use(gzip.Gzip(gzip.DefaultCompression))
	}

	api := &API{svc: svc}
	router.GET("/healthz", api.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, apierror.New("route not found"))
	})

	v1 := router.Group("/api/v1")
	api.Register(v1)
	if opts.Summaries != nil {
		opts.Summaries.Register(v1)
	}
	return router
}

// Register mounts the record routes on r.
func (a *API) Register(r gin.IRouter) {
	products := r.Group("/products")
	products.GET("", a.listProducts)
	products.POST("", a.createProduct)
	products.GET("/:code", a.getProduct)
	products.PATCH("/:code", a.updateProduct)
	products.DELETE("/:code", a.deleteProduct)

	batches := r.Group("/batches")
	batches.GET("", a.listBatches)
	batches.POST("", a.createBatch)
	batches.GET("/:code", a.getBatch)
	batches.PATCH("/:code", a.updateBatch)
	batches.GET("/:code/history", a.batchHistory)
	r.GET("/eligible-batches", a.listEligibleBatches)

	r.GET("/inspections", a.listInspections)
	r.POST("/inspections", a.recordInspection)
	r.GET("/sensor-readings", a.listSensorReadings)
	r.POST("/sensor-readings", a.recordSensorReading)
	r.GET("/lab-tests", a.listLabTests)
	r.POST("/lab-tests", a.recordLabTest)
	r.GET("/packaging-tests", a.listPackagingTests)
	r.POST("/packaging-tests", a.recordPackagingTest)

	alerts := r.Group("/alerts")
	alerts.GET("", a.listAlerts)
	alerts.POST("", a.raiseAlert)
	alerts.GET("/:code", a.getAlert)
	alerts.POST("/:code/resolve", a.resolveAlert)

	reports := r.Group("/reports")
	reports.GET("", a.listReports)
	reports.POST("", a.generateReport)
	reports.GET("/:code", a.getReport)

	shipments := r.Group("/shipments")
	shipments.GET("", a.listShipments)
	shipments.POST("", a.createShipment)
	shipments.GET("/:code", a.getShipment)
	shipments.POST("/:code/advance", a.advanceShipment)
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rules": a.svc.Rules()})
}

type dataResponse struct {
	Data any `json:"data"`
}

// writeResponse carries a mutated record and the non-blocking rule findings
// of its transaction.
type writeResponse struct {
	Data     any                `json:"data"`
	Warnings []domain.Violation `json:"warnings,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dataResponse{Data: data})
}

func written(c *gin.Context, status int, data any, res core.Result) {
	c.JSON(status, writeResponse{Data: data, Warnings: res.Violations})
}

// bind decodes the JSON body into dst and answers 400 on malformed input.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apierror.BadRequest(c, "invalid JSON payload: "+err.Error())
		return false
	}
	return true
}

// enumQuery reads an optional enumerated query parameter.
func enumQuery[T ~string](c *gin.Context, entity domain.EntityType, name string, valid func(T) bool) (T, bool) {
	v := T(c.Query(name))
	if v != "" && !valid(v) {
		apierror.Write(c, domain.ValidationError{Entity: entity, Fields: []domain.FieldError{{
			Field: name, Message: "unknown value " + string(v),
		}}})
		return "", false
	}
	return v, true
}
