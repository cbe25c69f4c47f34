package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict marks a write that collided with an existing unique code or a
// one-per-batch record. The caller may retry with a fresh code.
var ErrConflict = errors.New("conflict")

// ErrReferenced marks a delete rejected because other records still point at
// the target.
var ErrReferenced = errors.New("record is referenced")

// ErrInvalidTransition marks a batch status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// ConflictError describes which unique value collided.
type ConflictError struct {
	Entity EntityType
	Field  string
	Value  string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e ConflictError) Unwrap() error { return ErrConflict }

// Retryable reports whether repeating the operation with a new code can succeed.
func (e ConflictError) Retryable() bool { return e.Field == "code" }

// ReferencedError names the dependants blocking a delete.
type ReferencedError struct {
	Entity     EntityType
	ID         string
	Dependents EntityType
	Count      int
}

func (e ReferencedError) Error() string {
	return fmt.Sprintf("%s %s is referenced by %d %s record(s)", e.Entity, e.ID, e.Count, e.Dependents)
}

// Unwrap lets errors.Is(err, ErrReferenced) match.
func (e ReferencedError) Unwrap() error { return ErrReferenced }

// TransitionError describes a rejected batch status change.
type TransitionError struct {
	Batch string
	From  BatchStatus
	To    BatchStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("batch %s cannot move from %s to %s", e.Batch, e.From, e.To)
}

// Unwrap lets errors.Is(err, ErrInvalidTransition) match.
func (e TransitionError) Unwrap() error { return ErrInvalidTransition }

// FieldError is a single failed field check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates failed field checks. Nothing is written when it is returned.
type ValidationError struct {
	Entity EntityType   `json:"entity"`
	Fields []FieldError `json:"fields"`
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
