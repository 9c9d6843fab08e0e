package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/platform/logger"
	"github.com/wzin/datawipe/internal/store"
)

// taskColumns is the canonical select list for deletion_tasks rows,
// matched by scanTask.
const taskColumns = `id, account_ref, site_domain, method, status, attempts, max_attempts,
	structural_failures, captcha_seen, last_error, retry_at, correlation_token,
	undo_deadline, confirmation_due_at, overdue_flagged_at, priority, batch_id,
	heartbeat_at, created_at, updated_at, completed_at`

// PostgresTaskStore implements the store.TaskStore interface using a
// PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresTaskStore(db store.DBTX, log *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: log.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.DeletionTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	lastError, err := marshalTaskError(task.LastError)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO deletion_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.AccountRef,
		task.SiteDomain,
		task.Method,
		task.Status,
		task.Attempts,
		task.MaxAttempts,
		task.StructuralFailures,
		task.CaptchaSeen,
		lastError,
		task.RetryAt,
		task.CorrelationToken,
		task.UndoDeadline,
		task.ConfirmationDueAt,
		task.OverdueFlaggedAt,
		task.Priority,
		task.BatchID,
		task.HeartbeatAt,
		task.CreatedAt,
		task.UpdatedAt,
		task.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create deletion task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeletionTask, error) {
	query := `SELECT ` + taskColumns + ` FROM deletion_tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

// GetByCorrelationToken implements store.TaskStore.GetByCorrelationToken.
// Only non-terminal tasks are candidates: archived tasks and terminal
// failures no longer accept confirmations.
func (s *PostgresTaskStore) GetByCorrelationToken(ctx context.Context, token string) (*domain.DeletionTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM deletion_tasks
		WHERE correlation_token = $1
		  AND status <> 'archived'
		  AND NOT (status = 'failed' AND retry_at IS NULL)
		ORDER BY created_at DESC
		LIMIT 1
	`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

// List implements store.TaskStore.List
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.DeletionTask, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.BatchID != nil {
		args = append(args, *filter.BatchID)
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if filter.Method != nil {
		args = append(args, *filter.Method)
		conditions = append(conditions, fmt.Sprintf("method = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM deletion_tasks`
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

	return s.queryTasks(ctx, query, args...)
}

// ListReady implements store.TaskStore.ListReady
func (s *PostgresTaskStore) ListReady(ctx context.Context, now time.Time, limit int) ([]*domain.DeletionTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM deletion_tasks
		WHERE status = 'pending'
		   OR (status = 'failed' AND retry_at IS NOT NULL AND retry_at <= $1)
		ORDER BY priority DESC, created_at ASC
		LIMIT $2
	`
	return s.queryTasks(ctx, query, now, limit)
}

// Claim implements store.TaskStore.Claim. The WHERE clause re-checks
// dispatchability inside the UPDATE, so of two racing workers exactly
// one sees a row affected.
func (s *PostgresTaskStore) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE deletion_tasks
		SET status = 'in_progress', heartbeat_at = $2, updated_at = $2
		WHERE id = $1
		  AND (status = 'pending'
		       OR (status = 'failed' AND retry_at IS NOT NULL AND retry_at <= $2))
	`
	result, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, MapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.DeletionTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	lastError, err := marshalTaskError(task.LastError)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		UPDATE deletion_tasks
		SET method = $2, status = $3, attempts = $4, structural_failures = $5,
		    captcha_seen = $6, last_error = $7, retry_at = $8, undo_deadline = $9,
		    confirmation_due_at = $10, overdue_flagged_at = $11, heartbeat_at = $12,
		    updated_at = $13, completed_at = $14
		WHERE id = $1 AND status <> 'archived'
	`
	result, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Method,
		task.Status,
		task.Attempts,
		task.StructuralFailures,
		task.CaptchaSeen,
		lastError,
		task.RetryAt,
		task.UndoDeadline,
		task.ConfirmationDueAt,
		task.OverdueFlaggedAt,
		task.HeartbeatAt,
		now,
		task.CompletedAt,
	)
	if err != nil {
		log.Error("failed to update deletion task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row is gone or it is archived; look once to tell.
		var status domain.TaskStatus
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM deletion_tasks WHERE id = $1`, task.ID).Scan(&status)
		if err != nil {
			return store.ErrTaskNotFound
		}
		if status == domain.TaskStatusArchived {
			return store.ErrTaskArchived
		}
		return store.ErrUpdateFailed
	}

	task.UpdatedAt = now
	return nil
}

// Heartbeat implements store.TaskStore.Heartbeat
func (s *PostgresTaskStore) Heartbeat(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE deletion_tasks
		SET heartbeat_at = $2
		WHERE id = $1 AND status = 'in_progress'
	`
	result, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, "deletion task")
}

// ListAwaitingConfirmation implements store.TaskStore.ListAwaitingConfirmation
func (s *PostgresTaskStore) ListAwaitingConfirmation(ctx context.Context) ([]*domain.DeletionTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM deletion_tasks
		WHERE status = 'awaiting_confirmation'
		ORDER BY created_at ASC
	`
	return s.queryTasks(ctx, query)
}

// ListStaleClaims implements store.TaskStore.ListStaleClaims
func (s *PostgresTaskStore) ListStaleClaims(ctx context.Context, olderThan time.Duration, now time.Time) ([]*domain.DeletionTask, error) {
	cutoff := now.Add(-olderThan)
	query := `
		SELECT ` + taskColumns + `
		FROM deletion_tasks
		WHERE status = 'in_progress'
		  AND (heartbeat_at IS NULL OR heartbeat_at < $1)
		ORDER BY created_at ASC
	`
	return s.queryTasks(ctx, query, cutoff)
}

// ListArchivable implements store.TaskStore.ListArchivable. Correlated
// completions carry an explicit undo deadline; automated completions
// fall back to completed_at plus the configured window.
func (s *PostgresTaskStore) ListArchivable(ctx context.Context, undoWindow time.Duration, now time.Time) ([]*domain.DeletionTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM deletion_tasks
		WHERE status = 'completed'
		  AND ((undo_deadline IS NOT NULL AND undo_deadline <= $1)
		       OR (undo_deadline IS NULL AND completed_at IS NOT NULL AND completed_at <= $2))
		ORDER BY completed_at ASC
	`
	return s.queryTasks(ctx, query, now, now.Add(-undoWindow))
}

// CountByStatus implements store.TaskStore.CountByStatus
func (s *PostgresTaskStore) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM deletion_tasks GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return counts, nil
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*domain.DeletionTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.DeletionTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.DeletionTask, error) {
	var task domain.DeletionTask
	var lastError []byte

	err := row.Scan(
		&task.ID,
		&task.AccountRef,
		&task.SiteDomain,
		&task.Method,
		&task.Status,
		&task.Attempts,
		&task.MaxAttempts,
		&task.StructuralFailures,
		&task.CaptchaSeen,
		&lastError,
		&task.RetryAt,
		&task.CorrelationToken,
		&task.UndoDeadline,
		&task.ConfirmationDueAt,
		&task.OverdueFlaggedAt,
		&task.Priority,
		&task.BatchID,
		&task.HeartbeatAt,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(lastError) > 0 {
		var taskErr domain.TaskError
		if err := json.Unmarshal(lastError, &taskErr); err != nil {
			return nil, fmt.Errorf("failed to decode last_error: %w", err)
		}
		task.LastError = &taskErr
	}
	return &task, nil
}

func marshalTaskError(taskErr *domain.TaskError) ([]byte, error) {
	if taskErr == nil {
		return nil, nil
	}
	data, err := json.Marshal(taskErr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode last_error: %w", err)
	}
	return data, nil
}
