// Package summaries serves the aggregate summaries over HTTP and exports
// them as JSON, CSV or XLSX artifacts into the blob store.
package summaries

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"agroqc/internal/adapters/apierror"
	"agroqc/internal/core"
	"agroqc/pkg/domain"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP access to summaries and exports.
type Handler struct {
	Runner  Runner
	Exports *Worker
}

// NewHandler constructs a summary HTTP handler. exports may be nil, in which
// case the export routes answer 404.
func NewHandler(runner Runner, exports *Worker) *Handler {
	return &Handler{Runner: runner, Exports: exports}
}

// Register mounts the summary and export routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/summaries", h.list)
	r.GET("/summaries/:key", h.describe)
	r.GET("/summaries/:key/run", h.run)
	r.POST("/exports", h.createExport)
	r.GET("/exports/:id", h.getExport)
	r.GET("/exports/:id/artifacts/:format", h.downloadArtifact)
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"summaries": h.Runner.Summaries()})
}

func (h *Handler) describe(c *gin.Context) {
	summary, ok := h.Runner.Summary(c.Param("key"))
	if !ok {
		apierror.Write(c, notFound(c.Param("key")))
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// run computes a summary. Query parameters other than format are passed to
// the summary; format picks json (default), csv or xlsx.
func (h *Handler) run(c *gin.Context) {
	format := FormatJSON
	if raw := c.Query("format"); raw != "" {
		f, ok := ParseFormat(raw)
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotAcceptable, apierror.New("requested format not supported"))
			return
		}
		format = f
	} else if strings.Contains(c.GetHeader("Accept"), "text/csv") {
		format = FormatCSV
	}

	params := make(map[string]string)
	for name, values := range c.Request.URL.Query() {
		if name == "format" || len(values) == 0 {
			continue
		}
		params[name] = values[0]
	}

	key := c.Param("key")
	result, err := h.Runner.RunSummary(c.Request.Context(), key, params)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	if format == FormatJSON {
		c.JSON(http.StatusOK, result)
		return
	}
	payload, err := Render(format, result)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	filename := fmt.Sprintf("%s-%s.%s", key, result.GeneratedAt.Format("20060102T150405Z"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), payload)
}

type exportRequest struct {
	Summary     string            `json:"summary" binding:"required"`
	Params      map[string]string `json:"params"`
	Formats     []string          `json:"formats"`
	RequestedBy string            `json:"requested_by"`
	Reason      string            `json:"reason"`
}

func (h *Handler) createExport(c *gin.Context) {
	if h.Exports == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, apierror.New("exports not configured"))
		return
	}
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid export request payload")
		return
	}
	formats := make([]Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		f, ok := ParseFormat(raw)
		if !ok {
			apierror.Write(c, validationError("formats", fmt.Sprintf("format %q is not supported", raw)))
			return
		}
		formats = append(formats, f)
	}
	record, err := h.Exports.EnqueueExport(c.Request.Context(), ExportInput{
		SummaryKey:  req.Summary,
		Params:      req.Params,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if errors.Is(err, ErrQueueFull) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
		return
	}
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"export": record})
}

func (h *Handler) getExport(c *gin.Context) {
	if h.Exports == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, apierror.New("exports not configured"))
		return
	}
	record, ok := h.Exports.GetExport(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, apierror.New("export not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"export": record})
}

func (h *Handler) downloadArtifact(c *gin.Context) {
	if h.Exports == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, apierror.New("exports not configured"))
		return
	}
	f, ok := ParseFormat(c.Param("format"))
	if !ok {
		apierror.BadRequest(c, "unknown artifact format")
		return
	}
	artifact, payload, err := h.Exports.Artifact(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Key[strings.LastIndex(artifact.Key, "/")+1:]))
	c.Data(http.StatusOK, f.ContentType(), payload)
}

func validationError(field, msg string) error {
	return domain.ValidationError{Entity: core.EntitySummary, Fields: []domain.FieldError{{Field: field, Message: msg}}}
}

func notFound(key string) error {
	return domain.ErrNotFound{Entity: core.EntitySummary, ID: key}
}
