package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the deletion service. The API layer maps
// them onto HTTP status codes with errors.Is.
var (
	// ErrEmptyBatch indicates a submission with no account references.
	ErrEmptyBatch = errors.New("batch contains no accounts")

	// ErrUnknownAccount indicates a submitted account reference that the
	// external account store cannot resolve. The whole submission is
	// rejected so a batch never silently shrinks.
	ErrUnknownAccount = errors.New("account reference is unknown")
)

// DeletionServiceError wraps unexpected failures with the operation that
// produced them.
type DeletionServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *DeletionServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deletion service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("deletion service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DeletionServiceError) Unwrap() error {
	return e.Err
}

// NewDeletionServiceError creates a new DeletionServiceError.
func NewDeletionServiceError(operation, message string, err error) *DeletionServiceError {
	return &DeletionServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
