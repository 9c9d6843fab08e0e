package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
)

// TaskFilter narrows List results. Nil fields are ignored.
type TaskFilter struct {
	Status  *domain.TaskStatus
	BatchID *uuid.UUID
	Method  *domain.DeletionMethod
	Limit   int
	Offset  int
}

// TaskStore is the durable record of every deletion task. It is the only
// shared mutable resource between the dispatcher, the correlator and the
// retention manager, so it must provide an atomic claim operation.
type TaskStore interface {
	// Create saves a new task to the store.
	Create(ctx context.Context, task *domain.DeletionTask) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeletionTask, error)

	// GetByCorrelationToken retrieves the non-terminal task carrying the
	// given correlation token. Returns ErrTaskNotFound if none matches.
	GetByCorrelationToken(ctx context.Context, token string) (*domain.DeletionTask, error)

	// List retrieves tasks matching the filter, newest first.
	List(ctx context.Context, filter TaskFilter) ([]*domain.DeletionTask, error)

	// ListReady retrieves up to limit dispatchable tasks at the given
	// instant: pending, or failed-retryable with retry_at elapsed.
	// Ordered by priority (highest first) then created_at (FIFO).
	ListReady(ctx context.Context, now time.Time, limit int) ([]*domain.DeletionTask, error)

	// Claim atomically moves a ready task to in_progress. It is a
	// compare-and-set: the update only applies while the task is still
	// dispatchable, so concurrent workers can never both hold the claim.
	// Returns false without error when another worker won the race.
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// Update persists the task's mutable fields. The update is rejected
	// with ErrTaskArchived if the stored row is already archived.
	Update(ctx context.Context, task *domain.DeletionTask) error

	// Heartbeat refreshes the liveness timestamp of an in_progress task.
	Heartbeat(ctx context.Context, id uuid.UUID, now time.Time) error

	// ListAwaitingConfirmation retrieves all tasks waiting on an inbound
	// confirmation message.
	ListAwaitingConfirmation(ctx context.Context) ([]*domain.DeletionTask, error)

	// ListStaleClaims retrieves in_progress tasks whose heartbeat is
	// older than the liveness threshold, for crash recovery.
	ListStaleClaims(ctx context.Context, olderThan time.Duration, now time.Time) ([]*domain.DeletionTask, error)

	// ListArchivable retrieves completed tasks whose undo window has
	// elapsed at the given instant.
	ListArchivable(ctx context.Context, undoWindow time.Duration, now time.Time) ([]*domain.DeletionTask, error)

	// CountByStatus returns the number of tasks per status.
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)

	// WithTx returns a TaskStore bound to the given transaction.
	WithTx(tx *sql.Tx) TaskStore
}
