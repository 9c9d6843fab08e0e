// Package events provides the task-transition change feed consumed by
// the API layer for live progress display.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
)

// TransitionEvent describes one task status transition. Seq is assigned
// by the feed in publish order and is the cursor for polling consumers.
type TransitionEvent struct {
	Seq        uint64                `json:"seq"`
	TaskID     uuid.UUID             `json:"task_id"`
	BatchID    uuid.UUID             `json:"batch_id"`
	From       domain.TaskStatus     `json:"from"`
	To         domain.TaskStatus     `json:"to"`
	Method     domain.DeletionMethod `json:"method"`
	Reason     string                `json:"reason,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// NewTransitionEvent creates an event for the given task transition.
// Seq is zero until the feed assigns it.
func NewTransitionEvent(task *domain.DeletionTask, from domain.TaskStatus, reason string) TransitionEvent {
	return TransitionEvent{
		TaskID:     task.ID,
		BatchID:    task.BatchID,
		From:       from,
		To:         task.Status,
		Method:     task.Method,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher is the write side of the change feed.
type Publisher interface {
	// Publish appends the event to the feed. Never blocks on slow
	// consumers.
	Publish(event TransitionEvent)
}
