package errors

import "maps"

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfig represents user-facing configuration and input errors.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// CategorySpawn represents failures to start the external build tool.
	CategorySpawn   ErrorCategory = "spawn"
	CategoryProcess ErrorCategory = "process"

	// CategoryRestore and CategoryBuild represent pipeline phase errors.
	CategoryRestore ErrorCategory = "restore"
	CategoryBuild   ErrorCategory = "build"

	// CategoryHistory represents build-history persistence errors.
	CategoryHistory ErrorCategory = "history"

	// CategoryRuntime represents runtime and infrastructure errors.
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"     // Permanent failure, don't retry
	RetryImmediate  RetryStrategy = "immediate" // Retry immediately
	RetryBackoff    RetryStrategy = "backoff"   // Retry with exponential backoff
	RetryUserAction RetryStrategy = "user"      // Requires user intervention
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Merge combines another context into this one, with the other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	maps.Copy(c, other)
	return c
}
