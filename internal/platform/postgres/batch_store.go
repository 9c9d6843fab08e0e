package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/platform/logger"
	"github.com/wzin/datawipe/internal/store"
)

// PostgresBatchStore implements the store.BatchStore interface using a
// PostgreSQL database as the storage backend. Member task IDs live on
// the deletion_tasks rows; the batch row holds the submission metadata.
type PostgresBatchStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBatchStore creates a new PostgreSQL implementation of the
// BatchStore interface.
func NewPostgresBatchStore(db store.DBTX, log *slog.Logger) *PostgresBatchStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresBatchStore{
		db:     db,
		logger: log.With(slog.String("component", "batch_store")),
	}
}

// Ensure PostgresBatchStore implements store.BatchStore interface
var _ store.BatchStore = (*PostgresBatchStore)(nil)

// WithTx implements store.BatchStore.WithTx
func (s *PostgresBatchStore) WithTx(tx *sql.Tx) store.BatchStore {
	return &PostgresBatchStore{db: tx, logger: s.logger}
}

// Create implements store.BatchStore.Create
func (s *PostgresBatchStore) Create(ctx context.Context, batch *domain.BatchJob) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO batches (id, submitted_at, requested_parallelism)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query,
		batch.ID,
		batch.SubmittedAt,
		batch.RequestedParallelism,
	)
	if err != nil {
		log.Error("failed to create batch",
			slog.String("batch_id", batch.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.BatchStore.GetByID
func (s *PostgresBatchStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	query := `
		SELECT id, submitted_at, requested_parallelism
		FROM batches
		WHERE id = $1
	`
	var batch domain.BatchJob
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID,
		&batch.SubmittedAt,
		&batch.RequestedParallelism,
	)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrBatchNotFound
		}
		return nil, MapError(err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM deletion_tasks WHERE batch_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var taskID uuid.UUID
		if err := rows.Scan(&taskID); err != nil {
			return nil, MapError(err)
		}
		batch.TaskIDs = append(batch.TaskIDs, taskID)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return &batch, nil
}
