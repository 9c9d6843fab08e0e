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

// PostgresConfirmationStore implements the store.ConfirmationStore
// interface using a PostgreSQL database as the storage backend. The
// unique constraint on source_message_id makes correlation idempotent
// per inbound message.
type PostgresConfirmationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresConfirmationStore creates a new PostgreSQL implementation
// of the ConfirmationStore interface.
func NewPostgresConfirmationStore(db store.DBTX, log *slog.Logger) *PostgresConfirmationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresConfirmationStore{
		db:     db,
		logger: log.With(slog.String("component", "confirmation_store")),
	}
}

// Ensure PostgresConfirmationStore implements store.ConfirmationStore interface
var _ store.ConfirmationStore = (*PostgresConfirmationStore)(nil)

// WithTx implements store.ConfirmationStore.WithTx
func (s *PostgresConfirmationStore) WithTx(tx *sql.Tx) store.ConfirmationStore {
	return &PostgresConfirmationStore{db: tx, logger: s.logger}
}

// Create implements store.ConfirmationStore.Create
func (s *PostgresConfirmationStore) Create(ctx context.Context, event *domain.ConfirmationEvent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := event.Validate(); err != nil {
		return MapError(err)
	}

	query := `
		INSERT INTO confirmation_events
			(id, task_id, source_message_id, kind, confidence, applied, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.TaskID,
		event.SourceMessageID,
		event.Kind,
		event.Confidence,
		event.Applied,
		event.MatchedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if !store.IsDuplicateError(mapped) {
			log.Error("failed to create confirmation event",
				slog.String("task_id", event.TaskID.String()),
				slog.String("error", err.Error()))
		}
		return mapped
	}
	return nil
}

// GetBySourceMessageID implements store.ConfirmationStore.GetBySourceMessageID
func (s *PostgresConfirmationStore) GetBySourceMessageID(ctx context.Context, messageID string) (*domain.ConfirmationEvent, error) {
	query := `
		SELECT id, task_id, source_message_id, kind, confidence, applied, matched_at
		FROM confirmation_events
		WHERE source_message_id = $1
	`
	event, err := scanConfirmation(s.db.QueryRowContext(ctx, query, messageID))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrConfirmationNotFound
		}
		return nil, MapError(err)
	}
	return event, nil
}

// ListForTask implements store.ConfirmationStore.ListForTask
func (s *PostgresConfirmationStore) ListForTask(ctx context.Context, taskID uuid.UUID) ([]*domain.ConfirmationEvent, error) {
	query := `
		SELECT id, task_id, source_message_id, kind, confidence, applied, matched_at
		FROM confirmation_events
		WHERE task_id = $1
		ORDER BY matched_at ASC
	`
	return s.queryConfirmations(ctx, query, taskID)
}

// ListPendingReview implements store.ConfirmationStore.ListPendingReview
func (s *PostgresConfirmationStore) ListPendingReview(ctx context.Context) ([]*domain.ConfirmationEvent, error) {
	query := `
		SELECT id, task_id, source_message_id, kind, confidence, applied, matched_at
		FROM confirmation_events
		WHERE applied = FALSE
		ORDER BY matched_at ASC
	`
	return s.queryConfirmations(ctx, query)
}

func (s *PostgresConfirmationStore) queryConfirmations(ctx context.Context, query string, args ...interface{}) ([]*domain.ConfirmationEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var events []*domain.ConfirmationEvent
	for rows.Next() {
		event, err := scanConfirmation(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return events, nil
}

func scanConfirmation(row rowScanner) (*domain.ConfirmationEvent, error) {
	var event domain.ConfirmationEvent
	err := row.Scan(
		&event.ID,
		&event.TaskID,
		&event.SourceMessageID,
		&event.Kind,
		&event.Confidence,
		&event.Applied,
		&event.MatchedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
