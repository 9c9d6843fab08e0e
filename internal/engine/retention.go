package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/audit"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/store"
)

// Retention archives completed tasks once their undo window elapses and
// reverts them while it is still open. Archived tasks are immutable and
// exist only for the audit record.
type Retention struct {
	tasks    store.TaskStore
	recorder *audit.Recorder
	feed     events.Publisher
	logger   *slog.Logger

	sweepInterval time.Duration
	undoWindow    time.Duration

	runTx func(ctx context.Context, fn store.TxFn) error
}

// NewRetention creates a retention manager over the task store.
func NewRetention(
	cfg config.EngineConfig,
	db *sql.DB,
	tasks store.TaskStore,
	recorder *audit.Recorder,
	feed events.Publisher,
	log *slog.Logger,
) *Retention {
	if log == nil {
		log = slog.Default()
	}
	return &Retention{
		tasks:         tasks,
		recorder:      recorder,
		feed:          feed,
		logger:        log.With(slog.String("component", "retention")),
		sweepInterval: cfg.SweepInterval,
		undoWindow:    cfg.UndoWindow,
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
	}
}

// Run sweeps on the configured interval until the context is cancelled.
// It blocks; callers run it in a goroutine.
func (r *Retention) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	r.logger.Info("retention manager started",
		slog.Duration("sweep_interval", r.sweepInterval),
		slog.Duration("undo_window", r.undoWindow))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("retention manager stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.SweepOnce(ctx, time.Now().UTC()); err != nil {
				r.logger.Error("retention sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// SweepOnce archives every completed task whose undo window has elapsed
// at the given instant. Tasks confirmed by correlation carry an explicit
// undo deadline; automated completions fall back to completed_at plus
// the configured window.
func (r *Retention) SweepOnce(ctx context.Context, now time.Time) error {
	archivable, err := r.tasks.ListArchivable(ctx, r.undoWindow, now)
	if err != nil {
		return fmt.Errorf("listing archivable tasks: %w", err)
	}

	archived := 0
	for _, task := range archivable {
		from := task.Status
		task.Status = domain.TaskStatusArchived

		if err := r.tasks.Update(ctx, task); err != nil {
			r.logger.Error("failed to archive task",
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		archived++

		r.recorder.Record(ctx, &task.ID, domain.AuditActionTaskArchived, ActorEngine,
			map[string]interface{}{
				"completed_at": task.CompletedAt,
			})
		r.feed.Publish(events.NewTransitionEvent(task, from, "undo window elapsed"))
	}

	if archived > 0 {
		r.logger.Info("archived tasks", slog.Int("count", archived))
	}
	return nil
}

// Undo reverts a completed deletion while its undo window is open. The
// task goes back to pending with its attempt budget reset, so the next
// dispatch scan picks it up fresh. Site history (captcha sightings,
// structural failures) is kept so method selection stays informed.
func (r *Retention) Undo(ctx context.Context, taskID uuid.UUID, actor string) (*domain.DeletionTask, error) {
	now := time.Now().UTC()
	var undone *domain.DeletionTask

	err := r.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tasks := r.tasks.WithTx(tx)

		task, err := tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if err := task.UndoableAt(now); err != nil {
			return err
		}

		task.Status = domain.TaskStatusPending
		task.Attempts = 0
		task.RetryAt = nil
		task.LastError = nil
		task.CompletedAt = nil
		task.UndoDeadline = nil
		task.ConfirmationDueAt = nil
		task.OverdueFlaggedAt = nil

		if err := tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("reverting task: %w", err)
		}
		undone = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.recorder.Record(ctx, &undone.ID, domain.AuditActionTaskUndone, actor, nil)
	r.feed.Publish(events.NewTransitionEvent(undone, domain.TaskStatusCompleted, "undo requested"))
	return undone, nil
}
