package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in
	// the store. Entity-specific variants wrap it.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would violate a
	// uniqueness constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation
	// before being stored. Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update matched no row.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested deletion task does
	// not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: deletion task", ErrNotFound)

	// ErrBatchNotFound indicates that the requested batch does not exist.
	ErrBatchNotFound = fmt.Errorf("%w: batch", ErrNotFound)

	// ErrConfirmationNotFound indicates that no confirmation event exists
	// for the requested task or message.
	ErrConfirmationNotFound = fmt.Errorf("%w: confirmation event", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrDuplicateMessage indicates that a confirmation event for the
	// same source message has already been recorded. The correlator uses
	// this to keep message processing idempotent.
	ErrDuplicateMessage = fmt.Errorf("%w: source message", ErrDuplicate)

	// ErrDuplicateToken indicates that a task with the same correlation
	// token is already active.
	ErrDuplicateToken = fmt.Errorf("%w: correlation token", ErrDuplicate)

	// ErrTaskArchived indicates a write against an archived task, which
	// is immutable.
	ErrTaskArchived = errors.New("archived tasks are immutable")
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with
// additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "task", "batch")
	Operation string // The operation that failed (e.g., "create", "claim")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity,
// operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
