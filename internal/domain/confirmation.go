package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for ConfirmationEvent
var (
	ErrEmptyConfirmationID   = errors.New("confirmation event ID cannot be empty")
	ErrEmptyConfirmationTask = errors.New("confirmation event task ID cannot be empty")
	ErrEmptyMessageID        = errors.New("confirmation event message ID cannot be empty")
	ErrInvalidConfidence     = errors.New("confirmation confidence must be between 0 and 1")
)

// MatchKind distinguishes how an inbound message was tied to a task.
type MatchKind string

// Possible match kinds. Exact matches carry the correlation token
// verbatim and are always applied; heuristic matches are scored and
// applied only above the configured confidence threshold.
const (
	MatchExact     MatchKind = "exact"
	MatchHeuristic MatchKind = "heuristic"
)

// ConfirmationEvent records the correlation of one inbound message to
// one deletion task. Sub-threshold heuristic matches are stored with
// Applied=false so an operator can review them.
type ConfirmationEvent struct {
	ID              uuid.UUID `json:"id"`
	TaskID          uuid.UUID `json:"task_id"`
	SourceMessageID string    `json:"source_message_id"`
	Kind            MatchKind `json:"kind"`
	Confidence      float64   `json:"confidence"`
	Applied         bool      `json:"applied"`
	MatchedAt       time.Time `json:"matched_at"`
}

// NewConfirmationEvent creates a confirmation event for the given task
// and source message.
func NewConfirmationEvent(
	taskID uuid.UUID,
	sourceMessageID string,
	kind MatchKind,
	confidence float64,
	applied bool,
) (*ConfirmationEvent, error) {
	event := &ConfirmationEvent{
		ID:              uuid.New(),
		TaskID:          taskID,
		SourceMessageID: sourceMessageID,
		Kind:            kind,
		Confidence:      confidence,
		Applied:         applied,
		MatchedAt:       time.Now().UTC(),
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	return event, nil
}

// Validate checks the event's field invariants.
func (e *ConfirmationEvent) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyConfirmationID
	}
	if e.TaskID == uuid.Nil {
		return ErrEmptyConfirmationTask
	}
	if e.SourceMessageID == "" {
		return ErrEmptyMessageID
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}
