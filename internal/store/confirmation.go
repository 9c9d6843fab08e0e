package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
)

// ConfirmationStore persists the correlation of inbound messages to
// tasks. Source message IDs are unique so re-processing a message the
// correlator has already matched is a detectable no-op.
type ConfirmationStore interface {
	// Create saves a confirmation event. Returns ErrDuplicateMessage if
	// an event for the same source message ID already exists.
	Create(ctx context.Context, event *domain.ConfirmationEvent) error

	// GetBySourceMessageID retrieves the event recorded for a message.
	// Returns ErrConfirmationNotFound if the message was never matched.
	GetBySourceMessageID(ctx context.Context, messageID string) (*domain.ConfirmationEvent, error)

	// ListForTask retrieves all events recorded for a task.
	ListForTask(ctx context.Context, taskID uuid.UUID) ([]*domain.ConfirmationEvent, error)

	// ListPendingReview retrieves sub-threshold heuristic matches that
	// were recorded but not applied.
	ListPendingReview(ctx context.Context) ([]*domain.ConfirmationEvent, error)

	// WithTx returns a ConfirmationStore bound to the given transaction.
	WithTx(tx *sql.Tx) ConfirmationStore
}
