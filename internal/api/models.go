package api

import (
	"github.com/google/uuid"

	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/service"
)

// SubmitBatchRequest is the request body for POST /api/batches.
type SubmitBatchRequest struct {
	AccountRefs []string `json:"account_refs" validate:"required,min=1,dive,required"`
	Parallelism int      `json:"parallelism"  validate:"required,min=1,max=10"`
	MaxAttempts int      `json:"max_attempts" validate:"omitempty,min=1,max=5"`
	Priority    int      `json:"priority"`
}

// SubmitBatchResponse is the response body for POST /api/batches.
type SubmitBatchResponse struct {
	BatchID uuid.UUID   `json:"batch_id"`
	TaskIDs []uuid.UUID `json:"task_ids"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []*domain.DeletionTask `json:"tasks"`
	Count int                    `json:"count"`
}

// RevealCredentialRequest is the request body for credential reveal.
type RevealCredentialRequest struct {
	AccountRef string `json:"account_ref" validate:"required"`
}

// RevealCredentialResponse carries the decrypted credential. It exists
// only in the response body; the value is never stored or logged.
type RevealCredentialResponse struct {
	AccountRef string `json:"account_ref"`
	Credential string `json:"credential"`
}

// EngineStateResponse reports the dispatcher's pause state.
type EngineStateResponse struct {
	Paused bool `json:"paused"`
}

// EventsResponse is a page of the transition change feed. Next is the
// cursor to pass as ?after= on the next poll.
type EventsResponse struct {
	Events []events.TransitionEvent `json:"events"`
	Next   uint64                   `json:"next"`
}

// StatsResponse wraps the engine-wide statistics.
type StatsResponse struct {
	Stats *service.EngineStats `json:"stats"`
}
