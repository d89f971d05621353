package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrParse             = errors.New("failed to parse evaluator response")
	ErrPollTimeout       = errors.New("document did not become ready in time")
	ErrTaskTimeout       = errors.New("task timed out")
)

// TransientConnectionError marks a remote failure worth retrying.
type TransientConnectionError struct {
	Err error
}

func (e *TransientConnectionError) Error() string {
	return fmt.Sprintf("transient connection error: %v", e.Err)
}

func (e *TransientConnectionError) Unwrap() error { return e.Err }

// EvaluationError wraps a failure reported by the remote evaluator.
type EvaluationError struct {
	Op  string
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// UnsupportedFormatError carries the rejected extension. It matches
// ErrUnsupportedFormat under errors.Is.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("Unsupported file type: %s. Only PDF and DOCX are supported.", e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

func IsTransient(err error) bool {
	var t *TransientConnectionError
	return errors.As(err, &t)
}
