package errors

import (
	"errors"
	"fmt"
)

// ClassifiedError represents a structured error with category, severity, and context.
// All orchestrator failures propagate as classified errors so callers can route
// them (user-facing vs. internal) without string matching.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// Error implements the standard error interface.
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

// Unwrap implements Go 1.13+ error unwrapping.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// Category returns the error category.
func (e *ClassifiedError) Category() ErrorCategory {
	return e.category
}

// Severity returns the error severity.
func (e *ClassifiedError) Severity() ErrorSeverity {
	return e.severity
}

// RetryStrategy returns the recommended retry strategy.
func (e *ClassifiedError) RetryStrategy() RetryStrategy {
	return e.retry
}

// Message returns the error message without category/severity decoration.
func (e *ClassifiedError) Message() string {
	return e.message
}

// Context returns the error context.
func (e *ClassifiedError) Context() ErrorContext {
	return e.context
}

// WithContext adds context to the error and returns a new error.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	clone := *e
	clone.context = e.context.Merge(nil).Set(key, value)
	return &clone
}

// Is implements error comparison for Go 1.13+ error handling.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// IsCategory checks if the error belongs to a specific category.
func (e *ClassifiedError) IsCategory(category ErrorCategory) bool {
	return e.category == category
}

// IsFatal checks if the error is fatal (should stop execution).
func (e *ClassifiedError) IsFatal() bool {
	return e.severity == SeverityFatal
}

// AsClassified extracts a ClassifiedError from an error chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
