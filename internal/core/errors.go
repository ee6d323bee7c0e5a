package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the registry, directory, executor and dispatcher.
// Callers match with errors.Is; packages wrap these with context.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrExecution     = errors.New("query execution failed")
)

// ExecutionError reports a failed query against a target database.
// It carries the underlying driver error so its message reaches the caller.
type ExecutionError struct {
	Engine string
	Op     string // "open", "ping", "query", "scan"
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", ErrExecution, e.Engine, e.Op)
	}
	return fmt.Sprintf("%s: %s", ErrExecution, e.Err.Error())
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExecution) match any ExecutionError.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// NewExecutionError wraps a driver error for the given engine and operation.
func NewExecutionError(engine, op string, err error) *ExecutionError {
	return &ExecutionError{Engine: engine, Op: op, Err: err}
}
