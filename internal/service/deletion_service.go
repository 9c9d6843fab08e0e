package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wzin/datawipe/internal/accounts"
	"github.com/wzin/datawipe/internal/audit"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/engine"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/platform/logger"
	"github.com/wzin/datawipe/internal/store"
)

// DispatchControl is the slice of the dispatcher the service needs.
type DispatchControl interface {
	Pause(ctx context.Context, actor string)
	Resume(ctx context.Context, actor string)
	Paused() bool
	Reconfigure(cfg config.EngineConfig) error
}

// UndoManager reverts completed deletions inside their undo window.
type UndoManager interface {
	Undo(ctx context.Context, taskID uuid.UUID, actor string) (*domain.DeletionTask, error)
}

// BatchRequest is one submission of accounts for deletion.
type BatchRequest struct {
	// AccountRefs are opaque references into the external account store.
	AccountRefs []string

	// Parallelism is the worker count requested for this batch (1-10).
	Parallelism int

	// MaxAttempts overrides the engine default when between 1 and 5.
	MaxAttempts int

	// Priority orders the batch's tasks against other pending work.
	Priority int
}

// BatchStatus is a batch plus the live status breakdown of its tasks.
type BatchStatus struct {
	Batch  *domain.BatchJob          `json:"batch"`
	Counts map[domain.TaskStatus]int `json:"counts"`
}

// EngineStats is the aggregate view exposed to operators.
type EngineStats struct {
	Counts   map[domain.TaskStatus]int `json:"counts"`
	Total    int                       `json:"total"`
	InFlight int                       `json:"in_flight"`
	Paused   bool                      `json:"paused"`
}

// DeletionService orchestrates operator actions over the task store and
// the running engine components.
type DeletionService struct {
	tasks     store.TaskStore
	batches   store.BatchStore
	accounts  accounts.Store
	decryptor accounts.CredentialDecryptor
	recorder  *audit.Recorder
	feed      events.Publisher
	dispatch  DispatchControl
	undo      UndoManager
	defaults  config.EngineConfig
	logger    *slog.Logger

	inFlight func() int

	runTx func(ctx context.Context, fn store.TxFn) error
}

// NewDeletionService wires the service over its collaborators. The
// dispatcher is passed twice, narrowed to the two capabilities the
// service uses, so tests can stub them independently.
func NewDeletionService(
	cfg config.EngineConfig,
	db *sql.DB,
	tasks store.TaskStore,
	batches store.BatchStore,
	accountStore accounts.Store,
	decryptor accounts.CredentialDecryptor,
	recorder *audit.Recorder,
	feed events.Publisher,
	dispatch DispatchControl,
	undo UndoManager,
	log *slog.Logger,
) *DeletionService {
	if log == nil {
		log = slog.Default()
	}
	return &DeletionService{
		tasks:     tasks,
		batches:   batches,
		accounts:  accountStore,
		decryptor: decryptor,
		recorder:  recorder,
		feed:      feed,
		dispatch:  dispatch,
		undo:      undo,
		defaults:  cfg,
		logger:    log.With(slog.String("component", "deletion_service")),
		inFlight:  func() int { return 0 },
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
	}
}

// SetInFlightFunc registers the dispatcher's in-flight counter for the
// stats endpoint.
func (s *DeletionService) SetInFlightFunc(fn func() int) {
	if fn != nil {
		s.inFlight = fn
	}
}

// SetTxRunner replaces the transaction wrapper. Tests use it to run
// transactional operations against in-memory stores.
func (s *DeletionService) SetTxRunner(fn func(ctx context.Context, txFn store.TxFn) error) {
	if fn != nil {
		s.runTx = fn
	}
}

// SubmitBatch creates one pending task per account reference under a new
// batch. Every reference must resolve in the account store; an unknown
// reference rejects the whole submission. The batch and its tasks land
// in one transaction, and the requested parallelism becomes the
// dispatcher's worker count.
func (s *DeletionService) SubmitBatch(ctx context.Context, actor string, req BatchRequest) (*domain.BatchJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(req.AccountRefs) == 0 {
		return nil, ErrEmptyBatch
	}

	batch, err := domain.NewBatchJob(req.Parallelism)
	if err != nil {
		return nil, err
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 || maxAttempts > 5 {
		maxAttempts = s.defaults.MaxAttempts
	}

	tasks := make([]*domain.DeletionTask, 0, len(req.AccountRefs))
	for _, ref := range req.AccountRefs {
		account, err := s.accounts.GetAccount(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAccount, ref)
		}

		task, err := domain.NewDeletionTask(
			ref, account.SiteDomain, domain.MethodAutomated, maxAttempts, req.Priority, batch.ID)
		if err != nil {
			return nil, NewDeletionServiceError("submit", "building task", err)
		}
		tasks = append(tasks, task)
		batch.TaskIDs = append(batch.TaskIDs, task.ID)
	}

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.batches.WithTx(tx).Create(ctx, batch); err != nil {
			return fmt.Errorf("creating batch: %w", err)
		}
		txTasks := s.tasks.WithTx(tx)
		for _, task := range tasks {
			if err := txTasks.Create(ctx, task); err != nil {
				return fmt.Errorf("creating task for %q: %w", task.AccountRef, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewDeletionServiceError("submit", "persisting batch", err)
	}

	s.recorder.Record(ctx, nil, domain.AuditActionBatchSubmitted, actor, map[string]interface{}{
		"batch_id":    batch.ID.String(),
		"task_count":  len(tasks),
		"parallelism": req.Parallelism,
	})
	for _, task := range tasks {
		s.recorder.Record(ctx, &task.ID, domain.AuditActionTaskCreated, actor, map[string]interface{}{
			"site_domain": task.SiteDomain,
			"method":      string(task.Method),
		})
	}

	workerCfg := s.defaults
	workerCfg.WorkerCount = req.Parallelism
	if err := s.dispatch.Reconfigure(workerCfg); err != nil {
		log.Warn("failed to apply requested parallelism",
			slog.Int("parallelism", req.Parallelism),
			slog.String("error", err.Error()))
	}

	log.Info("batch submitted",
		slog.String("batch_id", batch.ID.String()),
		slog.Int("task_count", len(tasks)))
	return batch, nil
}

// GetTask retrieves one task by ID.
func (s *DeletionService) GetTask(ctx context.Context, id uuid.UUID) (*domain.DeletionTask, error) {
	return s.tasks.GetByID(ctx, id)
}

// ListTasks retrieves tasks matching the filter, newest first.
func (s *DeletionService) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.DeletionTask, error) {
	return s.tasks.List(ctx, filter)
}

// GetBatch retrieves a batch with the live status breakdown of its
// member tasks.
func (s *DeletionService) GetBatch(ctx context.Context, id uuid.UUID) (*BatchStatus, error) {
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	members, err := s.tasks.List(ctx, store.TaskFilter{BatchID: &batch.ID})
	if err != nil {
		return nil, NewDeletionServiceError("get_batch", "listing member tasks", err)
	}

	counts := make(map[domain.TaskStatus]int)
	for _, task := range members {
		counts[task.Status]++
	}
	return &BatchStatus{Batch: batch, Counts: counts}, nil
}

// Stats returns the aggregate task counts plus live engine state.
func (s *DeletionService) Stats(ctx context.Context) (*EngineStats, error) {
	counts, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, NewDeletionServiceError("stats", "counting tasks", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return &EngineStats{
		Counts:   counts,
		Total:    total,
		InFlight: s.inFlight(),
		Paused:   s.dispatch.Paused(),
	}, nil
}

// ManualRetry resubmits a terminally failed task. It is the only way out
// of the exhausted or permanent-failure state: attempts reset to zero
// and the task goes back to pending. Tasks that tripped a captcha or
// repeatedly broke on site structure come back on the email method.
func (s *DeletionService) ManualRetry(ctx context.Context, id uuid.UUID, actor string) (*domain.DeletionTask, error) {
	var retried *domain.DeletionTask
	var from domain.TaskStatus
	var fromMethod domain.DeletionMethod

	err := s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		task, err := tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if task.Status != domain.TaskStatusFailed || task.RetryAt != nil {
			return domain.ErrTaskNotRetryable
		}

		from = task.Status
		fromMethod = task.Method

		task.Status = domain.TaskStatusPending
		task.Attempts = 0
		task.LastError = nil
		task.RetryAt = nil
		if task.CaptchaSeen || task.StructuralFailures >= engine.StructuralSwitchThreshold {
			task.Method = domain.MethodEmail
		}

		if err := tasks.Update(ctx, task); err != nil {
			return err
		}
		retried = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail := map[string]interface{}{"attempts_reset": true}
	if retried.Method != fromMethod {
		detail["method"] = string(retried.Method)
	}
	s.recorder.Record(ctx, &retried.ID, domain.AuditActionManualRetry, actor, detail)
	s.feed.Publish(events.NewTransitionEvent(retried, from, "manual retry"))
	return retried, nil
}

// Undo reverts a completed deletion while its undo window is open.
func (s *DeletionService) Undo(ctx context.Context, id uuid.UUID, actor string) (*domain.DeletionTask, error) {
	return s.undo.Undo(ctx, id, actor)
}

// Pause halts new dispatch without cancelling in-flight work.
func (s *DeletionService) Pause(ctx context.Context, actor string) {
	s.dispatch.Pause(ctx, actor)
}

// Resume re-enables dispatch after a pause.
func (s *DeletionService) Resume(ctx context.Context, actor string) {
	s.dispatch.Resume(ctx, actor)
}

// RevealCredential decrypts the credential behind an account reference
// for operator display. Every reveal is audited; the cleartext is
// returned to the caller and nowhere else.
func (s *DeletionService) RevealCredential(ctx context.Context, ref, actor string) (string, error) {
	account, err := s.accounts.GetAccount(ctx, ref)
	if err != nil {
		return "", err
	}

	plaintext, err := s.decryptor.Decrypt(ctx, account.CredentialHandle)
	if err != nil {
		return "", NewDeletionServiceError("reveal", "decrypting credential", err)
	}

	s.recorder.Record(ctx, nil, domain.AuditActionCredentialsReveal, actor, map[string]interface{}{
		"account_ref": ref,
		"site_domain": account.SiteDomain,
		"revealed_at": time.Now().UTC().Format(time.RFC3339),
	})
	return plaintext, nil
}
