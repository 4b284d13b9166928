package store

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks a failure worth retrying (network, rate limit)
	ErrTransient = errors.New("transient store failure")

	// ErrUnavailable is returned once retries are exhausted
	ErrUnavailable = errors.New("store unavailable")

	// ErrUnknownTable is returned when a table does not exist in the backend
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn is returned when a write names a column the table lacks
	ErrUnknownColumn = errors.New("unknown column")
)

// TransientError wraps a retryable backend failure.
type TransientError struct {
	Op  Op
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Transient marks err as retryable. A nil err stays nil.
func Transient(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// UnavailableError is surfaced after the final failed attempt.
type UnavailableError struct {
	Op       Op
	Table    string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Op, e.Table, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }
