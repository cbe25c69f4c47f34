// Package apierror maps service errors onto HTTP responses. Every 4xx/5xx
// body written by the API goes through here so internal details (driver
// errors, file paths) never reach clients.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"agroqc/internal/blob"
	"agroqc/pkg/domain"

	"github.com/gin-gonic/gin"
)

// APIError is the error envelope for all 4xx/5xx responses.
type APIError struct {
	Error      string              `json:"error"`
	Fields     []domain.FieldError `json:"fields,omitempty"`
	Violations []domain.Violation  `json:"violations,omitempty"`
	Retryable  bool                `json:"retryable,omitempty"`
	RequestID  string              `json:"request_id,omitempty"`
}

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// New builds an envelope carrying only a message.
func New(msg string) APIError {
	return APIError{Error: msg}
}

// From classifies err and returns the status code and envelope to send.
func From(err error) (int, APIError) {
	var (
		ve  domain.ValidationError
		ce  domain.ConflictError
		rv  domain.RuleViolationError
		nf  domain.ErrNotFound
		ref domain.ReferencedError
		te  domain.TransitionError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, APIError{Error: err.Error(), Fields: ve.Fields}
	case errors.As(err, &ce):
		return http.StatusConflict, APIError{Error: err.Error(), Retryable: ce.Retryable()}
	case errors.As(err, &ref):
		return http.StatusConflict, APIError{Error: err.Error()}
	case errors.Is(err, domain.ErrConflict), errors.Is(err, blob.ErrExists):
		return http.StatusConflict, APIError{Error: err.Error()}
	case errors.As(err, &nf):
		return http.StatusNotFound, APIError{Error: nf.Error()}
	case errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound, APIError{Error: "artifact not found"}
	case errors.As(err, &rv):
		return http.StatusUnprocessableEntity, APIError{Error: rv.Error(), Violations: rv.Result.Violations}
	case errors.As(err, &te), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, APIError{Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, APIError{Error: "request timed out"}
	default:
		return http.StatusInternalServerError, APIError{Error: "internal server error"}
	}
}

// Write aborts the request with the response err classifies to. Server
// errors are attached to the gin context for the logging middleware.
func Write(c *gin.Context, err error) {
	status, body := From(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	body.RequestID = c.GetString(RequestIDKey)
	c.AbortWithStatusJSON(status, body)
}

// BadRequest aborts with 400 and msg.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Error: msg, RequestID: c.GetString(RequestIDKey)})
}
