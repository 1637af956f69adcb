package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the timeloop library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrRepeatTask indicates a task name that is already registered
	ErrRepeatTask = errors.New("task already registered")
)

// ValidationError describes a rejected configuration or task field.
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

// WithHint attaches a remediation hint and returns the same error.
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

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// RepeatTaskError is returned when a task is registered under a name that
// is already present and the task asks neither to replace nor to be kept alive.
type RepeatTaskError struct {
	Name string
}

// NewRepeatTaskError creates a RepeatTaskError for the given task name.
func NewRepeatTaskError(name string) *RepeatTaskError {
	return &RepeatTaskError{Name: name}
}

func (e *RepeatTaskError) Error() string {
	return fmt.Sprintf("task [%s] repeat: %v", e.Name, ErrRepeatTask)
}

// Unwrap lets errors.Is match ErrRepeatTask.
func (e *RepeatTaskError) Unwrap() error {
	return ErrRepeatTask
}

// IsRepeatTask returns true if err signals a duplicate task registration
func IsRepeatTask(err error) bool {
	return errors.Is(err, ErrRepeatTask)
}

// OperationError wraps a failure of a named operation, such as a task callback.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError without extra context.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches a short description and returns the same error.
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

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// IsValidationError returns true if err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
