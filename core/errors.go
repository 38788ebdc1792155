package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable reports that a backing capability is not loaded, for
	// example because its provider credential is missing.
	ErrUnavailable = errors.New("capability unavailable")

	// ErrNotFound reports a reference to an unknown task, agent or tool.
	ErrNotFound = errors.New("not found")
)

// ExecutionError wraps a failure raised by an invoked capability or tool.
type ExecutionError struct {
	Capability string
	Err        error
}

// Error implements error. It yields the underlying cause description so the
// text stored on a failed task matches what the capability raised.
func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: execution failed", e.Capability)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps err as raised by capability. A nil err yields nil.
func NewExecutionError(capability string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecutionError{Capability: capability, Err: err}
}
