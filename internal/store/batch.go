package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
)

// BatchStore persists batch submissions.
type BatchStore interface {
	// Create saves a new batch to the store.
	Create(ctx context.Context, batch *domain.BatchJob) error

	// GetByID retrieves a batch with its member task IDs.
	// Returns ErrBatchNotFound if the batch does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error)

	// WithTx returns a BatchStore bound to the given transaction.
	WithTx(tx *sql.Tx) BatchStore
}
