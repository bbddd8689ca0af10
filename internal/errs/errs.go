// Package errs defines the closed error-kind taxonomy shared by the
// graph, pipeline, and auth layers (spec §7). Every kind carries its
// own retry classification in data; callers and the retry helper
// never parse error messages to decide whether to retry.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError signals a bad input: never retryable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// EntityNotFound signals a graph entity absent for a query, distinct
// from an empty result set.
type EntityNotFound struct {
	EntityType string
	Key        string
}

func (e *EntityNotFound) Error() string {
	return fmt.Sprintf("entity not found: %s %q", e.EntityType, e.Key)
}

// ConnectionError signals a failed backend RPC transport.
// Retryable under the backend's retry policy.
type ConnectionError struct {
	Backend string
	Cause   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Backend, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// Retryable reports whether the connection failure is worth retrying.
func (e *ConnectionError) Retryable() bool { return true }

// TimeoutError signals an operation exceeded its deadline. Retryable
// only when the caller marks the underlying operation idempotent.
type TimeoutError struct {
	Operation string
	ElapsedMs int64
	Idempotent bool
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s exceeded deadline after %dms", e.Operation, e.ElapsedMs)
}

func (e *TimeoutError) Retryable() bool { return e.Idempotent }

// OperationError signals a backend logic error. Retryable iff the
// Retry flag is set by the backend adapter that produced it.
type OperationError struct {
	Op    string
	Cause error
	Retry bool
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation error (%s): %v", e.Op, e.Cause)
}

func (e *OperationError) Unwrap() error { return e.Cause }

func (e *OperationError) Retryable() bool { return e.Retry }

// TokenValidationError signals a malformed token or input to the
// token API. Never retryable.
type TokenValidationError struct {
	Message string
}

func (e *TokenValidationError) Error() string { return "token validation: " + e.Message }

// TokenStorageError signals a failure reading or writing the token
// file. The higher layer may retry when Recoverable is set.
type TokenStorageError struct {
	Op          string
	Cause       error
	Recoverable bool
}

func (e *TokenStorageError) Error() string {
	return fmt.Sprintf("token storage error (%s): %v", e.Op, e.Cause)
}

func (e *TokenStorageError) Unwrap() error { return e.Cause }

// GraphServiceValidationError signals a bad argument to the graph
// query service (C3), distinct from ValidationError so callers can
// distinguish adapter-level from service-level input errors.
type GraphServiceValidationError struct {
	Field   string
	Message string
}

func (e *GraphServiceValidationError) Error() string {
	return fmt.Sprintf("graph query validation: %s: %s", e.Field, e.Message)
}

// GraphServiceTimeoutError signals a graph query exceeded its
// per-call deadline (§5 "Cancellation & timeouts").
type GraphServiceTimeoutError struct {
	Method    string
	ElapsedMs int64
}

func (e *GraphServiceTimeoutError) Error() string {
	return fmt.Sprintf("graph query timeout: %s exceeded deadline after %dms", e.Method, e.ElapsedMs)
}

// GraphServiceOperationError wraps an adapter failure surfaced by the
// query service. Retry carries the adapter's own classification
// forward unchanged.
type GraphServiceOperationError struct {
	Method string
	Cause  error
	Retry  bool
}

func (e *GraphServiceOperationError) Error() string {
	return fmt.Sprintf("graph query operation error (%s): %v", e.Method, e.Cause)
}

func (e *GraphServiceOperationError) Unwrap() error { return e.Cause }

func (e *GraphServiceOperationError) Retryable() bool { return e.Retry }

// FileProcessingError signals a per-file failure during the update
// pipeline. Collected into UpdateResult.Errors; never propagated to
// abort the batch.
type FileProcessingError struct {
	Path  string
	Cause error
}

func (e *FileProcessingError) Error() string {
	return fmt.Sprintf("processing %s: %v", e.Path, e.Cause)
}

func (e *FileProcessingError) Unwrap() error { return e.Cause }

// Retryable is implemented by every kind in this package that carries
// its own retry classification. internal/retry reads this interface;
// it never inspects error strings.
type Retryable interface {
	error
	Retryable() bool
}

// IsRetryable classifies err using its Retryable() flag when present.
// Errors that don't implement Retryable are treated as non-retryable,
// matching the "syntax/validation errors are non-retryable" rule.
func IsRetryable(err error) bool {
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
