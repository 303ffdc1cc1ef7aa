package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the jobgraph library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidGraph indicates a graph submission with no jobs
	ErrInvalidGraph = errors.New("invalid graph: no jobs were pushed")

	// ErrGraphConsumed indicates a builder was submitted more than once
	ErrGraphConsumed = errors.New("graph builder already submitted")

	// ErrResourceExhausted indicates that no execution context was free
	// when the scheduler needed one
	ErrResourceExhausted = errors.New("execution context pool exhausted")

	// ErrDoubleWait indicates a context registered twice as a waiter on
	// the same event
	ErrDoubleWait = errors.New("context is already waiting on this event")

	// ErrNotInJob indicates a job-only operation was called outside a
	// running job
	ErrNotInJob = errors.New("operation is only valid inside a running job")

	// ErrDuplicateSchedule indicates a recurring schedule ID is already taken
	ErrDuplicateSchedule = errors.New("schedule already exists")

	// ErrScheduleLimit indicates the recurring scheduler is full
	ErrScheduleLimit = errors.New("maximum number of schedules reached")

	// ErrForeignContext indicates a dispatcher was asked to resume a fiber
	// that no dispatcher owns
	ErrForeignContext = errors.New("fiber has no owning dispatcher")
)

// IsFatal returns true if the error signals a broken scheduling invariant
// that cannot be recovered from at runtime.
func IsFatal(err error) bool {
	return errors.Is(err, ErrResourceExhausted) ||
		errors.Is(err, ErrDoubleWait) ||
		errors.Is(err, ErrForeignContext)
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// ValidationError describes a rejected configuration or argument value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap returns ErrInvalidConfiguration so errors.Is works on the category.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError wraps a failure of a named operation in a module.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError for module.operation.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches extra detail and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Cause
}
