package loanbook

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("loanbook: not found")
	ErrAlreadyExists = errors.New("loanbook: already exists")
	ErrInvalidInput  = errors.New("loanbook: invalid input")
	ErrUnauthorized  = errors.New("loanbook: unauthorized")

	// Loan errors
	ErrLoanNotFound    = errors.New("loanbook: loan not found")
	ErrLoanSettled     = errors.New("loanbook: loan is already settled")
	ErrEmptyUpdate     = errors.New("loanbook: update changes nothing")
	ErrStatusMismatch  = errors.New("loanbook: status contradicts remaining balance")
	ErrCurrencyInvalid = errors.New("loanbook: currency does not match ledger")

	// Store errors
	ErrStorageFailure      = errors.New("loanbook: storage failure")
	ErrConcurrencyConflict = errors.New("loanbook: concurrent modification conflict")
	ErrStoreClosed         = errors.New("loanbook: store is closed")
	ErrMigrationFailed     = errors.New("loanbook: migration failed")
)

// ValidationError represents a validation failure on a single input field.
// Err optionally names a more specific sentinel such as ErrCurrencyInvalid.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("loanbook: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

// StorageError wraps an unexpected persistence failure with the engine
// operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("loanbook: %s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorageFailure so callers need not know the concrete type.
func (e *StorageError) Is(target error) bool { return target == ErrStorageFailure }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}

// IsInvalidInput returns true if the request itself was rejected.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrLoanSettled) ||
		errors.Is(err, ErrEmptyUpdate) ||
		errors.Is(err, ErrStatusMismatch) ||
		errors.Is(err, ErrCurrencyInvalid)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// wrapStorage passes through errors that already carry meaning for the
// caller and reports everything else as a StorageError.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsInvalidInput(err) || errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
