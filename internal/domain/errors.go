package domain

import (
	"errors"
	"fmt"
)

// ErrCancellationRequested signals that an operation stopped early because
// the run was aborted. It is an expected outcome, not a failure.
var ErrCancellationRequested = errors.New("cancellation requested")

// ConnectionError means the source or target database could not be reached.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError means the server rejected a metadata query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("query error: %v", e.Err)
	}
	return fmt.Sprintf("query %s failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ExecutionError records one replay batch that failed.
type ExecutionError struct {
	Batch int
	Line  int
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("batch %d (line %d) failed: %v", e.Batch, e.Line, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IOError means a script file could not be read or written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("script file %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsCancellation reports whether err is (or wraps) an abort outcome.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancellationRequested)
}
