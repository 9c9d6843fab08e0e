package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/wzin/datawipe/internal/audit"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/mail"
	"github.com/wzin/datawipe/internal/store"
)

// tokenPattern recognizes a correlation token quoted anywhere in an
// inbound message. Tokens are generated by domain.NewCorrelationToken.
var tokenPattern = regexp.MustCompile(`DW-[0-9a-f]{20}`)

// confirmationKeywords are the completion phrases scored by the
// heuristic matcher. Each distinct keyword found raises confidence.
var confirmationKeywords = []string{
	"deleted",
	"confirmed",
	"removed",
	"closed",
	"deactivated",
	"erased",
}

// heuristicBase and heuristicPerKeyword define the confidence score of
// a domain-matched message: base plus a step per distinct keyword, with
// diminishing returns after three.
const (
	heuristicBase       = 0.4
	heuristicPerKeyword = 0.2
	heuristicKeywordCap = 3
)

// match is one message tied to one task, queued for the applier.
type match struct {
	task       *domain.DeletionTask
	message    mail.Message
	kind       domain.MatchKind
	confidence float64
}

// Correlator polls the inbox and ties replies to awaiting tasks. An
// exact correlation token match always wins; otherwise sender domain
// plus completion keywords produce a scored heuristic match. All state
// transitions funnel through a single applier goroutine so two messages
// confirming the same task can never race.
type Correlator struct {
	inbox         mail.Inbox
	tasks         store.TaskStore
	confirmations store.ConfirmationStore
	recorder      *audit.Recorder
	feed          events.Publisher
	logger        *slog.Logger

	pollInterval time.Duration
	lookback     time.Duration
	threshold    float64
	undoWindow   time.Duration

	matches chan match
	runTx   func(ctx context.Context, fn store.TxFn) error
}

// NewCorrelator creates a correlator over the given inbox and stores.
func NewCorrelator(
	cfg config.EngineConfig,
	db *sql.DB,
	inbox mail.Inbox,
	tasks store.TaskStore,
	confirmations store.ConfirmationStore,
	recorder *audit.Recorder,
	feed events.Publisher,
	log *slog.Logger,
) *Correlator {
	if log == nil {
		log = slog.Default()
	}
	return &Correlator{
		inbox:         inbox,
		tasks:         tasks,
		confirmations: confirmations,
		recorder:      recorder,
		feed:          feed,
		logger:        log.With(slog.String("component", "correlator")),
		pollInterval:  cfg.ConfirmationPollInterval,
		lookback:      cfg.LookbackWindow,
		threshold:     cfg.ConfidenceThreshold,
		undoWindow:    cfg.UndoWindow,
		matches:       make(chan match, 64),
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
	}
}

// Run polls the inbox on the configured interval and applies matches
// until the context is cancelled. It blocks; callers run it in a
// goroutine.
func (c *Correlator) Run(ctx context.Context) error {
	go c.applyLoop(ctx)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	c.logger.Info("correlator started",
		slog.Duration("poll_interval", c.pollInterval),
		slog.Float64("confidence_threshold", c.threshold))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("correlator stopped")
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			c.flagOverdue(ctx, now)
			if err := c.pollOnce(ctx, now); err != nil {
				c.logger.Error("inbox poll failed", slog.String("error", err.Error()))
			}
		}
	}
}

// pollOnce fetches inbound messages inside the lookback window and
// routes each through matching.
func (c *Correlator) pollOnce(ctx context.Context, now time.Time) error {
	messages, err := c.inbox.Poll(ctx, now.Add(-c.lookback))
	if err != nil {
		return fmt.Errorf("polling inbox: %w", err)
	}

	for _, msg := range messages {
		c.processMessage(ctx, msg, now)
	}
	return nil
}

// processMessage matches one inbound message. Processing is idempotent
// per source message ID: a message already correlated is skipped with an
// audit entry and no state change.
func (c *Correlator) processMessage(ctx context.Context, msg mail.Message, now time.Time) {
	if msg.MessageID == "" {
		return
	}

	prior, err := c.confirmations.GetBySourceMessageID(ctx, msg.MessageID)
	if err == nil {
		c.recorder.Record(ctx, &prior.TaskID, domain.AuditActionConfirmationDupe, ActorEngine,
			map[string]interface{}{
				"source_message_id": msg.MessageID,
			})
		return
	}
	if !errors.Is(err, store.ErrConfirmationNotFound) {
		c.logger.Error("confirmation lookup failed",
			slog.String("message_id", msg.MessageID),
			slog.String("error", err.Error()))
		return
	}

	if task, ok := c.matchExact(ctx, msg); ok {
		c.enqueue(ctx, match{task: task, message: msg, kind: domain.MatchExact, confidence: 1.0})
		return
	}

	c.matchHeuristic(ctx, msg, now)
}

// matchExact looks for a correlation token quoted in the subject or
// body. A token always identifies its task regardless of who sent the
// message or what else it says.
func (c *Correlator) matchExact(ctx context.Context, msg mail.Message) (*domain.DeletionTask, bool) {
	token := tokenPattern.FindString(msg.Subject)
	if token == "" {
		token = tokenPattern.FindString(msg.Body)
	}
	if token == "" {
		return nil, false
	}

	task, err := c.tasks.GetByCorrelationToken(ctx, token)
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			c.logger.Error("token lookup failed",
				slog.String("token", token),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return task, true
}

// matchHeuristic scores a message against awaiting tasks by sender
// domain and completion keywords. Above-threshold matches are queued
// for application; below-threshold ones are recorded unapplied for
// operator review.
func (c *Correlator) matchHeuristic(ctx context.Context, msg mail.Message, now time.Time) {
	senderDomain := msg.SenderDomain()
	if senderDomain == "" {
		return
	}
	if !msg.ReceivedAt.IsZero() && now.Sub(msg.ReceivedAt) > c.lookback {
		return
	}

	keywords := distinctKeywords(msg.Subject + " " + msg.Body)
	if keywords == 0 {
		return
	}

	task, err := c.awaitingForDomain(ctx, senderDomain)
	if err != nil {
		c.logger.Error("awaiting task lookup failed",
			slog.String("sender_domain", senderDomain),
			slog.String("error", err.Error()))
		return
	}
	if task == nil {
		return
	}

	confidence := HeuristicConfidence(keywords)
	if confidence >= c.threshold {
		c.enqueue(ctx, match{task: task, message: msg, kind: domain.MatchHeuristic, confidence: confidence})
		return
	}

	event, err := domain.NewConfirmationEvent(task.ID, msg.MessageID, domain.MatchHeuristic, confidence, false)
	if err != nil {
		c.logger.Error("failed to build confirmation event", slog.String("error", err.Error()))
		return
	}
	if err := c.confirmations.Create(ctx, event); err != nil {
		if !errors.Is(err, store.ErrDuplicateMessage) {
			c.logger.Error("failed to record low-confidence match", slog.String("error", err.Error()))
		}
		return
	}
	c.recorder.Record(ctx, &task.ID, domain.AuditActionConfirmationLow, ActorEngine,
		map[string]interface{}{
			"source_message_id": msg.MessageID,
			"confidence":        confidence,
			"sender_domain":     senderDomain,
		})
}

// awaitingForDomain returns the longest-waiting awaiting_confirmation
// task for the given sender domain, or nil when none is waiting.
func (c *Correlator) awaitingForDomain(ctx context.Context, senderDomain string) (*domain.DeletionTask, error) {
	awaiting, err := c.tasks.ListAwaitingConfirmation(ctx)
	if err != nil {
		return nil, err
	}

	var oldest *domain.DeletionTask
	for _, task := range awaiting {
		if task.SiteDomain != senderDomain {
			continue
		}
		if oldest == nil || task.CreatedAt.Before(oldest.CreatedAt) {
			oldest = task
		}
	}
	return oldest, nil
}

// enqueue hands a match to the applier. Drops with a log entry when the
// applier is backed up; the message is re-polled and matched again.
func (c *Correlator) enqueue(ctx context.Context, m match) {
	select {
	case c.matches <- m:
	case <-ctx.Done():
	default:
		c.logger.Warn("match queue full, deferring message",
			slog.String("message_id", m.message.MessageID),
			slog.String("task_id", m.task.ID.String()))
	}
}

// applyLoop is the single goroutine that turns matches into task
// transitions, serializing all confirmation-driven state changes.
func (c *Correlator) applyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.matches:
			if err := c.apply(ctx, m); err != nil {
				c.logger.Error("failed to apply confirmation",
					slog.String("task_id", m.task.ID.String()),
					slog.String("message_id", m.message.MessageID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// apply completes the matched task inside one transaction: re-fetch,
// verify it still awaits confirmation, record the confirmation event
// and move the task to completed with its undo window armed.
func (c *Correlator) apply(ctx context.Context, m match) error {
	now := time.Now().UTC()
	var applied *domain.DeletionTask
	var from domain.TaskStatus

	err := c.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tasks := c.tasks.WithTx(tx)
		confirmations := c.confirmations.WithTx(tx)

		task, err := tasks.GetByID(ctx, m.task.ID)
		if err != nil {
			return fmt.Errorf("refetching task: %w", err)
		}
		if task.Status != domain.TaskStatusAwaitingConfirmation {
			// Another message won the race or an operator intervened.
			return nil
		}

		event, err := domain.NewConfirmationEvent(task.ID, m.message.MessageID, m.kind, m.confidence, true)
		if err != nil {
			return err
		}
		if err := confirmations.Create(ctx, event); err != nil {
			if errors.Is(err, store.ErrDuplicateMessage) {
				return nil
			}
			return fmt.Errorf("recording confirmation: %w", err)
		}

		from = task.Status
		task.Status = domain.TaskStatusCompleted
		completed := now
		task.CompletedAt = &completed
		deadline := now.Add(c.undoWindow)
		task.UndoDeadline = &deadline
		task.LastError = nil

		if err := tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("completing task: %w", err)
		}
		applied = task
		return nil
	})
	if err != nil || applied == nil {
		return err
	}

	c.recorder.Record(ctx, &applied.ID, domain.AuditActionConfirmationMatched, ActorEngine,
		map[string]interface{}{
			"source_message_id": m.message.MessageID,
			"match_kind":        string(m.kind),
			"confidence":        m.confidence,
			"undo_deadline":     *applied.UndoDeadline,
		})
	c.feed.Publish(events.NewTransitionEvent(applied, from, string(m.kind)+" confirmation"))
	return nil
}

// flagOverdue marks awaiting tasks whose compliance window has elapsed.
// The flag is one-shot and the status does not change: a late reply can
// still confirm an overdue task.
func (c *Correlator) flagOverdue(ctx context.Context, now time.Time) {
	awaiting, err := c.tasks.ListAwaitingConfirmation(ctx)
	if err != nil {
		c.logger.Error("overdue scan failed", slog.String("error", err.Error()))
		return
	}

	for _, task := range awaiting {
		if task.ConfirmationDueAt == nil || task.OverdueFlaggedAt != nil {
			continue
		}
		if now.Before(*task.ConfirmationDueAt) {
			continue
		}

		flagged := now
		task.OverdueFlaggedAt = &flagged
		if err := c.tasks.Update(ctx, task); err != nil {
			c.logger.Error("failed to flag overdue task",
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		c.recorder.Record(ctx, &task.ID, domain.AuditActionConfirmOverdue, ActorEngine,
			map[string]interface{}{
				"confirmation_due_at": *task.ConfirmationDueAt,
			})
	}
}

// HeuristicConfidence converts a distinct keyword count into a match
// score: a domain match alone scores the base, each distinct completion
// keyword adds a step, saturating after three keywords.
func HeuristicConfidence(keywordCount int) float64 {
	if keywordCount > heuristicKeywordCap {
		keywordCount = heuristicKeywordCap
	}
	if keywordCount < 0 {
		keywordCount = 0
	}
	return heuristicBase + heuristicPerKeyword*float64(keywordCount)
}

func distinctKeywords(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range confirmationKeywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}
