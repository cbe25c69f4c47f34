package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"agroqc/internal/blob"
	"agroqc/pkg/domain"

	"github.com/gin-gonic/gin"
)

func TestFromClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		check  func(APIError) bool
	}{
		{"validation", domain.ValidationError{Entity: domain.EntityBatch, Fields: []domain.FieldError{{Field: "owner", Message: "is required"}}},
			http.StatusBadRequest, func(b APIError) bool { return len(b.Fields) == 1 && b.Fields[0].Field == "owner" }},
		{"code conflict", fmt.Errorf("create: %w", domain.ConflictError{Entity: domain.EntityBatch, Field: "code", Value: "LT-1"}),
			http.StatusConflict, func(b APIError) bool { return b.Retryable }},
		{"report conflict", domain.ConflictError{Entity: domain.EntityQualityReport, Field: "batch_code", Value: "LT-1"},
			http.StatusConflict, func(b APIError) bool { return !b.Retryable }},
		{"referenced", domain.ReferencedError{Entity: domain.EntityProduct, ID: "P", Dependents: domain.EntityBatch, Count: 2},
			http.StatusConflict, nil},
		{"blob exists", blob.ErrExists, http.StatusConflict, nil},
		{"not found", domain.ErrNotFound{Entity: domain.EntityBatch, ID: "LT-9"},
			http.StatusNotFound, func(b APIError) bool { return b.Error == "batch LT-9 not found" }},
		{"blob not found", fmt.Errorf("get: %w", blob.ErrNotFound), http.StatusNotFound, nil},
		{"rule", domain.RuleViolationError{Result: domain.Result{Violations: []domain.Violation{{Rule: "r", Severity: domain.SeverityBlock, Message: "no"}}}},
			http.StatusUnprocessableEntity, func(b APIError) bool { return len(b.Violations) == 1 }},
		{"transition", domain.TransitionError{Batch: "LT-1", From: domain.BatchNew, To: domain.BatchExported},
			http.StatusUnprocessableEntity, nil},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, nil},
		{"internal", errors.New("disk on fire"),
			http.StatusInternalServerError, func(b APIError) bool { return b.Error == "internal server error" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := From(tc.err)
			if status != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, status)
			}
			if tc.check != nil && !tc.check(body) {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

func TestWriteAttachesServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var attached int
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(RequestIDKey, "req-1")
		c.Next()
		attached = len(c.Errors)
	})
	r.GET("/boom", func(c *gin.Context) { Write(c, errors.New("boom")) })
	r.GET("/missing", func(c *gin.Context) { Write(c, domain.ErrNotFound{Entity: domain.EntityProduct, ID: "X"}) })
	r.GET("/bad", func(c *gin.Context) { BadRequest(c, "invalid payload") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError || attached != 1 {
		t.Fatalf("expected 500 with attached error, got %d / %d", rec.Code, attached)
	}
	var body APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.RequestID != "req-1" {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound || attached != 0 {
		t.Fatalf("client errors are not attached, got %d / %d", rec.Code, attached)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
