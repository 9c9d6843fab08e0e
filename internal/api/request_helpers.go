package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/store"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: missing %s", domain.ErrInvalidID, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", domain.ErrInvalidID, paramName)
	}
	return id, nil
}

// taskFilterFromQuery builds a task filter from list query parameters:
// status, method, batch_id, limit and offset. Unknown values are
// rejected rather than silently ignored.
func taskFilterFromQuery(r *http.Request) (store.TaskFilter, error) {
	var filter store.TaskFilter
	query := r.URL.Query()

	if raw := query.Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		switch status {
		case domain.TaskStatusPending, domain.TaskStatusInProgress,
			domain.TaskStatusAwaitingConfirmation, domain.TaskStatusCompleted,
			domain.TaskStatusFailed, domain.TaskStatusArchived:
			filter.Status = &status
		default:
			return filter, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, raw)
		}
	}

	if raw := query.Get("method"); raw != "" {
		method := domain.DeletionMethod(raw)
		switch method {
		case domain.MethodAutomated, domain.MethodEmail, domain.MethodManual:
			filter.Method = &method
		default:
			return filter, fmt.Errorf("%w: unknown method %q", domain.ErrValidation, raw)
		}
	}

	if raw := query.Get("batch_id"); raw != "" {
		batchID, err := uuid.Parse(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: batch_id", domain.ErrInvalidID)
		}
		filter.BatchID = &batchID
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("%w: limit", domain.ErrValidation)
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("%w: offset", domain.ErrValidation)
		}
		filter.Offset = offset
	}

	return filter, nil
}

// actorFromRequest identifies who performed an operator action for the
// audit trail. Falls back to "operator" when the header is absent.
func actorFromRequest(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "operator"
}

// afterCursor parses the ?after= change-feed cursor; absent means 0.
func afterCursor(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("after")
	if raw == "" {
		return 0, nil
	}
	after, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: after", domain.ErrValidation)
	}
	return after, nil
}
