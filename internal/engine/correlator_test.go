package engine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wzin/datawipe/internal/audit"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/mail"
	"github.com/wzin/datawipe/internal/mocks"
	"github.com/wzin/datawipe/internal/store"
)

type correlatorFixture struct {
	tasks         *mocks.MockTaskStore
	confirmations *mocks.MockConfirmationStore
	auditStore    *mocks.MockAuditStore
	inbox         *mocks.MockInbox
	correlator    *Correlator
}

func newCorrelatorFixture(t *testing.T) *correlatorFixture {
	t.Helper()

	tasks := mocks.NewMockTaskStore()
	confirmations := mocks.NewMockConfirmationStore()
	auditStore := mocks.NewMockAuditStore()
	inbox := &mocks.MockInbox{}

	c := NewCorrelator(
		testEngineConfig(),
		nil,
		inbox,
		tasks,
		confirmations,
		audit.NewRecorder(auditStore, nil),
		events.NewFeed(256, nil),
		nil,
	)
	// The mocks carry no real transactions.
	c.runTx = func(ctx context.Context, fn store.TxFn) error {
		return fn(ctx, (*sql.Tx)(nil))
	}
	return &correlatorFixture{
		tasks:         tasks,
		confirmations: confirmations,
		auditStore:    auditStore,
		inbox:         inbox,
		correlator:    c,
	}
}

// awaitingTask seeds one awaiting_confirmation task for the domain.
func (fx *correlatorFixture) awaitingTask(t *testing.T, siteDomain string) *domain.DeletionTask {
	t.Helper()
	task := newTestTask(t, siteDomain)
	task.Method = domain.MethodEmail
	task.Status = domain.TaskStatusAwaitingConfirmation
	due := time.Now().UTC().Add(720 * time.Hour)
	task.ConfirmationDueAt = &due
	fx.tasks.Seed(task)
	return task
}

// drain pops one queued match and applies it.
func (fx *correlatorFixture) drain(t *testing.T) {
	t.Helper()
	select {
	case m := <-fx.correlator.matches:
		require.NoError(t, fx.correlator.apply(context.Background(), m))
	default:
		t.Fatal("expected a queued match")
	}
}

func TestCorrelatorExactTokenMatch(t *testing.T) {
	t.Parallel()

	fx := newCorrelatorFixture(t)
	task := fx.awaitingTask(t, "example.com")
	now := time.Now().UTC()

	msg := mail.Message{
		MessageID:  "msg-1",
		From:       "privacy@totally-unrelated.net",
		Subject:    "Re: your request",
		Body:       "Your account has been handled. Reference: " + task.CorrelationToken,
		ReceivedAt: now,
	}
	fx.correlator.processMessage(context.Background(), msg, now)
	fx.drain(t)

	stored := fx.tasks.Snapshot(task.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	require.NotNil(t, stored.UndoDeadline)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, stored.CompletedAt.Add(24*time.Hour), *stored.UndoDeadline)

	recorded := fx.confirmations.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.MatchExact, recorded[0].Kind)
	assert.Equal(t, 1.0, recorded[0].Confidence)
	assert.True(t, recorded[0].Applied)

	assert.Contains(t, fx.auditStore.Actions(), domain.AuditActionConfirmationMatched)
}

func TestCorrelatorExactMatchBeatsSenderDomain(t *testing.T) {
	t.Parallel()

	fx := newCorrelatorFixture(t)
	tokenTask := fx.awaitingTask(t, "example.com")
	domainTask := fx.awaitingTask(t, "other.net")
	now := time.Now().UTC()

	// Sent from domainTask's site but quoting tokenTask's token.
	msg := mail.Message{
		MessageID:  "msg-2",
		From:       "support@other.net",
		Subject:    "Account deleted [" + tokenTask.CorrelationToken + "]",
		Body:       "Done.",
		ReceivedAt: now,
	}
	fx.correlator.processMessage(context.Background(), msg, now)
	fx.drain(t)

	assert.Equal(t, domain.TaskStatusCompleted, fx.tasks.Snapshot(tokenTask.ID).Status)
	assert.Equal(t, domain.TaskStatusAwaitingConfirmation, fx.tasks.Snapshot(domainTask.ID).Status)
}

func TestCorrelatorHeuristicMatchAboveThreshold(t *testing.T) {
	t.Parallel()

	fx := newCorrelatorFixture(t)
	task := fx.awaitingTask(t, "example.com")
	now := time.Now().UTC()

	msg := mail.Message{
		MessageID:  "msg-3",
		From:       "Privacy Team <privacy@example.com>",
		Subject:    "Your account has been deleted",
		Body:       "The account is now closed and all data removed.",
		ReceivedAt: now,
	}
	fx.correlator.processMessage(context.Background(), msg, now)
	fx.drain(t)

	stored := fx.tasks.Snapshot(task.ID)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)

	recorded := fx.confirmations.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.MatchHeuristic, recorded[0].Kind)
	assert.InDelta(t, 1.0, recorded[0].Confidence, 0.001, "three distinct keywords saturate the score")
}

func TestCorrelatorHeuristicBelowThresholdRecordedForReview(t *testing.T) {
	t.Parallel()

	fx := newCorrelatorFixture(t)
	task := fx.awaitingTask(t, "example.com")
	now := time.Now().UTC()

	// One keyword: 0.4 + 0.2 = 0.6, below the 0.75 threshold.
	msg := mail.Message{
		MessageID:  "msg-4",
		From:       "support@example.com",
		Subject:    "Update on your request",
		Body:       "Your request is confirmed received and queued.",
		ReceivedAt: now,
	}
	fx.correlator.processMessage(context.Background(), msg, now)

	stored := fx.tasks.Snapshot(task.ID)
	assert.Equal(t, domain.TaskStatusAwaitingConfirmation, stored.Status, "low-confidence matches must not complete tasks")

	pending, err := fx.confirmations.ListPendingReview(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Applied)
	assert.InDelta(t, 0.6, pending[0].Confidence, 0.001)

	assert.Contains(t, fx.auditStore.Actions(), domain.AuditActionConfirmationLow)
}

func TestCorrelatorDuplicateMessageIsAuditedNoOp(t *testing.T) {
	t.Parallel()

	fx := newCorrelatorFixture(t)
	task := fx.awaitingTask(t, "example.com")
	now := time.Now().UTC()

	msg := mail.Message{
		MessageID:  "msg-5",
		From:       "privacy@example.com",
		Subject:    "Deleted",
		Body:       "Account deleted, removed and closed. Ref " + task.CorrelationToken,
		ReceivedAt: now,
	}
	fx.correlator.processMessage(context.Background(), msg, now)
	fx.drain(t)
	require.Equal(t, domain.TaskStatusCompleted, fx.tasks.Snapshot(task.ID).Status)

	// The inbox re-delivers the same message on the next poll.
	fx.correlator.processMessage(context.Background(), msg, now)

	select {
	case <-fx.correlator.matches:
		t.Fatal("duplicate message must not queue a second match")
	default:
	}
	assert.Len(t, fx.confirmations.Events(), 1)
	assert.Contains(t, fx.auditStore.Actions(), domain.AuditActionConfirmationDupe)
}

func TestCorrelatorIgnoresUnmatchedSender(t *testing.T) {
	t.Parallel()

	fx := newCorrelatorFixture(t)
	fx.awaitingTask(t, "example.com")
	now := time.Now().UTC()

	msg := mail.Message{
		MessageID:  "msg-6",
		From:       "noreply@unrelated.org",
		Subject:    "Account deleted",
		Body:       "Deleted and removed.",
		ReceivedAt: now,
	}
	fx.correlator.processMessage(context.Background(), msg, now)

	select {
	case <-fx.correlator.matches:
		t.Fatal("message from an unknown domain must not match")
	default:
	}
	assert.Empty(t, fx.confirmations.Events())
}

func TestCorrelatorFlagsOverdueOnce(t *testing.T) {
	t.Parallel()

	fx := newCorrelatorFixture(t)
	task := fx.awaitingTask(t, "example.com")

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	stored := fx.tasks.Snapshot(task.ID)
	stored.ConfirmationDueAt = &past
	fx.tasks.Seed(stored)

	fx.correlator.flagOverdue(context.Background(), now)

	flagged := fx.tasks.Snapshot(task.ID)
	assert.Equal(t, domain.TaskStatusAwaitingConfirmation, flagged.Status, "overdue is a flag, not a status change")
	require.NotNil(t, flagged.OverdueFlaggedAt)

	fx.correlator.flagOverdue(context.Background(), now.Add(time.Minute))

	actions := 0
	for _, a := range fx.auditStore.Actions() {
		if a == domain.AuditActionConfirmOverdue {
			actions++
		}
	}
	assert.Equal(t, 1, actions, "overdue is flagged exactly once")
}

func TestHeuristicConfidence(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.4, HeuristicConfidence(0), 0.001)
	assert.InDelta(t, 0.6, HeuristicConfidence(1), 0.001)
	assert.InDelta(t, 0.8, HeuristicConfidence(2), 0.001)
	assert.InDelta(t, 1.0, HeuristicConfidence(3), 0.001)
	assert.InDelta(t, 1.0, HeuristicConfidence(6), 0.001)
}
