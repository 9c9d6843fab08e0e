package api

import (
	"errors"
	"net/http"

	"github.com/wzin/datawipe/internal/accounts"
	"github.com/wzin/datawipe/internal/api/shared"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/service"
	"github.com/wzin/datawipe/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, accounts.ErrAccountNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, domain.ErrTaskNotRetryable),
		errors.Is(err, domain.ErrTaskNotUndoable),
		errors.Is(err, domain.ErrUndoWindowExpired),
		errors.Is(err, domain.ErrTaskArchived),
		errors.Is(err, store.ErrTaskArchived):
		return http.StatusConflict

	case errors.Is(err, service.ErrEmptyBatch),
		errors.Is(err, service.ErrUnknownAccount),
		errors.Is(err, domain.ErrInvalidParallelism),
		errors.Is(err, domain.ErrInvalidMaxAttempts),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the
// error. Internal details stay in the logs.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrBatchNotFound):
		return "Batch not found"
	case errors.Is(err, accounts.ErrAccountNotFound):
		return "Account not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, domain.ErrTaskNotRetryable):
		return "Task is not in a retryable state"
	case errors.Is(err, domain.ErrUndoWindowExpired):
		return "The undo window for this task has expired"
	case errors.Is(err, domain.ErrTaskNotUndoable):
		return "Task is not in an undoable state"
	case errors.Is(err, domain.ErrTaskArchived), errors.Is(err, store.ErrTaskArchived):
		return "Archived tasks cannot be modified"

	case errors.Is(err, service.ErrEmptyBatch):
		return "Batch must contain at least one account"
	case errors.Is(err, service.ErrUnknownAccount):
		return "One or more account references are unknown"
	case errors.Is(err, domain.ErrInvalidParallelism):
		return "Parallelism must be between 1 and 10"
	case errors.Is(err, domain.ErrInvalidMaxAttempts):
		return "Max attempts must be between 1 and 5"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid identifier"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	default:
		return "An unexpected error occurred"
	}
}

// RespondWithServiceError is the single helper handlers use to turn an
// internal error into an HTTP response.
func RespondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
