package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/platform/logger"
	"github.com/wzin/datawipe/internal/store"
)

// PostgresAuditStore implements the store.AuditStore interface using a
// PostgreSQL database as the storage backend. The table is append-only;
// no update or delete statement exists in this package.
type PostgresAuditStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAuditStore creates a new PostgreSQL implementation of the
// AuditStore interface.
func NewPostgresAuditStore(db store.DBTX, log *slog.Logger) *PostgresAuditStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresAuditStore{
		db:     db,
		logger: log.With(slog.String("component", "audit_store")),
	}
}

// Ensure PostgresAuditStore implements store.AuditStore interface
var _ store.AuditStore = (*PostgresAuditStore)(nil)

// WithTx implements store.AuditStore.WithTx
func (s *PostgresAuditStore) WithTx(tx *sql.Tx) store.AuditStore {
	return &PostgresAuditStore{db: tx, logger: s.logger}
}

// Append implements store.AuditStore.Append
func (s *PostgresAuditStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var detail []byte
	if entry.Detail != nil {
		data, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode audit detail: %w", err)
		}
		detail = data
	}

	var taskID uuid.NullUUID
	if entry.TaskID != nil {
		taskID = uuid.NullUUID{UUID: *entry.TaskID, Valid: true}
	}

	query := `
		INSERT INTO audit_log (id, task_id, action, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		taskID,
		entry.Action,
		entry.Actor,
		detail,
		entry.CreatedAt,
	)
	if err != nil {
		log.Error("failed to append audit entry",
			slog.String("action", entry.Action),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// List implements store.AuditStore.List
func (s *PostgresAuditStore) List(ctx context.Context, filter store.AuditFilter) ([]*domain.AuditEntry, error) {
	var conditions []string
	var args []interface{}

	if filter.TaskID != nil {
		args = append(args, *filter.TaskID)
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}

	query := `SELECT id, task_id, action, actor, detail, created_at FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var taskID uuid.NullUUID
		var detail []byte
		if err := rows.Scan(
			&entry.ID,
			&taskID,
			&entry.Action,
			&entry.Actor,
			&detail,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if taskID.Valid {
			id := taskID.UUID
			entry.TaskID = &id
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode audit detail: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return entries, nil
}
