package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzin/datawipe/internal/accounts"
	"github.com/wzin/datawipe/internal/audit"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/mocks"
	"github.com/wzin/datawipe/internal/store"
)

type stubDispatch struct {
	paused      bool
	pauseCalls  int
	resumeCalls int
	lastWorkers int
	reconfigErr error
}

func (s *stubDispatch) Pause(ctx context.Context, actor string)  { s.pauseCalls++; s.paused = true }
func (s *stubDispatch) Resume(ctx context.Context, actor string) { s.resumeCalls++; s.paused = false }
func (s *stubDispatch) Paused() bool                             { return s.paused }
func (s *stubDispatch) Reconfigure(cfg config.EngineConfig) error {
	if s.reconfigErr != nil {
		return s.reconfigErr
	}
	s.lastWorkers = cfg.WorkerCount
	return nil
}

type stubUndo struct {
	fn func(ctx context.Context, taskID uuid.UUID, actor string) (*domain.DeletionTask, error)
}

func (s *stubUndo) Undo(ctx context.Context, taskID uuid.UUID, actor string) (*domain.DeletionTask, error) {
	return s.fn(ctx, taskID, actor)
}

type serviceFixture struct {
	svc       *DeletionService
	tasks     *mocks.MockTaskStore
	batches   *mocks.MockBatchStore
	audits    *mocks.MockAuditStore
	accounts  *mocks.MockAccountStore
	decryptor *mocks.MockDecryptor
	feed      *events.Feed
	dispatch  *stubDispatch
	undo      *stubUndo
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	fx := &serviceFixture{
		tasks:     mocks.NewMockTaskStore(),
		batches:   mocks.NewMockBatchStore(),
		audits:    mocks.NewMockAuditStore(),
		accounts:  mocks.NewMockAccountStore(),
		decryptor: &mocks.MockDecryptor{Secrets: map[string]string{}},
		feed:      events.NewFeed(64, nil),
		dispatch:  &stubDispatch{},
		undo:      &stubUndo{},
	}

	cfg := config.EngineConfig{
		WorkerCount:    5,
		MaxAttempts:    3,
		BaseRetryDelay: time.Second,
		MaxRetryDelay:  time.Minute,
	}
	fx.svc = NewDeletionService(
		cfg, nil,
		fx.tasks, fx.batches, fx.accounts, fx.decryptor,
		audit.NewRecorder(fx.audits, nil), fx.feed,
		fx.dispatch, fx.undo, nil)
	fx.svc.runTx = func(ctx context.Context, fn store.TxFn) error {
		return fn(ctx, (*sql.Tx)(nil))
	}
	return fx
}

func (fx *serviceFixture) seedAccount(ref, domainName string) {
	fx.accounts.Accounts[ref] = &accounts.Account{
		Ref:              ref,
		SiteDomain:       domainName,
		SiteName:         domainName,
		Username:         "user@" + domainName,
		CredentialHandle: "handle-" + ref,
	}
}

func TestSubmitBatchCreatesTaskPerAccount(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	fx.seedAccount("acct-1", "example.com")
	fx.seedAccount("acct-2", "other.org")

	batch, err := fx.svc.SubmitBatch(context.Background(), "operator", BatchRequest{
		AccountRefs: []string{"acct-1", "acct-2"},
		Parallelism: 2,
	})
	require.NoError(t, err)
	require.Len(t, batch.TaskIDs, 2)

	stored, err := fx.batches.GetByID(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RequestedParallelism)

	tasks, err := fx.tasks.List(context.Background(), store.TaskFilter{BatchID: &batch.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Equal(t, domain.MethodAutomated, task.Method)
		assert.Equal(t, 3, task.MaxAttempts)
		assert.NotEmpty(t, task.CorrelationToken)
	}

	assert.Equal(t, 2, fx.dispatch.lastWorkers)

	actions := fx.audits.Actions()
	assert.Contains(t, actions, domain.AuditActionBatchSubmitted)
	assert.Contains(t, actions, domain.AuditActionTaskCreated)
}

func TestSubmitBatchRejectsUnknownAccount(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	fx.seedAccount("known", "example.com")

	_, err := fx.svc.SubmitBatch(context.Background(), "operator", BatchRequest{
		AccountRefs: []string{"known", "missing"},
		Parallelism: 1,
	})
	require.ErrorIs(t, err, ErrUnknownAccount)

	// Nothing was persisted for the partial batch.
	tasks, err := fx.tasks.List(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSubmitBatchRejectsEmptyAndBadParallelism(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	fx.seedAccount("acct-1", "example.com")

	_, err := fx.svc.SubmitBatch(context.Background(), "operator", BatchRequest{Parallelism: 2})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = fx.svc.SubmitBatch(context.Background(), "operator", BatchRequest{
		AccountRefs: []string{"acct-1"},
		Parallelism: 11,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidParallelism)
}

func TestSubmitBatchHonorsMaxAttemptsOverride(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	fx.seedAccount("acct-1", "example.com")

	batch, err := fx.svc.SubmitBatch(context.Background(), "operator", BatchRequest{
		AccountRefs: []string{"acct-1"},
		Parallelism: 1,
		MaxAttempts: 5,
	})
	require.NoError(t, err)

	task := fx.tasks.Snapshot(batch.TaskIDs[0])
	require.NotNil(t, task)
	assert.Equal(t, 5, task.MaxAttempts)
}

func TestGetBatchReportsStatusCounts(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	fx.seedAccount("acct-1", "example.com")
	fx.seedAccount("acct-2", "other.org")

	batch, err := fx.svc.SubmitBatch(context.Background(), "operator", BatchRequest{
		AccountRefs: []string{"acct-1", "acct-2"},
		Parallelism: 1,
	})
	require.NoError(t, err)

	done := fx.tasks.Snapshot(batch.TaskIDs[0])
	done.Status = domain.TaskStatusCompleted
	now := time.Now().UTC()
	done.CompletedAt = &now
	require.NoError(t, fx.tasks.Update(context.Background(), done))

	status, err := fx.svc.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Counts[domain.TaskStatusCompleted])
	assert.Equal(t, 1, status.Counts[domain.TaskStatusPending])
}

func manualRetryTask(t *testing.T) *domain.DeletionTask {
	t.Helper()
	task, err := domain.NewDeletionTask(
		"acct-1", "example.com", domain.MethodAutomated, 3, 0, uuid.New())
	require.NoError(t, err)
	task.Status = domain.TaskStatusFailed
	task.Attempts = 3
	task.RetryAt = nil
	return task
}

func TestManualRetryResetsTerminalFailure(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	task := manualRetryTask(t)
	fx.tasks.Seed(task)

	retried, err := fx.svc.ManualRetry(context.Background(), task.ID, "operator")
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusPending, retried.Status)
	assert.Zero(t, retried.Attempts)
	assert.Nil(t, retried.LastError)
	assert.Equal(t, domain.MethodAutomated, retried.Method)

	assert.Contains(t, fx.audits.Actions(), domain.AuditActionManualRetry)

	published := fx.feed.Since(0)
	require.Len(t, published, 1)
	assert.Equal(t, domain.TaskStatusFailed, published[0].From)
	assert.Equal(t, domain.TaskStatusPending, published[0].To)
}

func TestManualRetrySwitchesToEmailAfterCaptcha(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	task := manualRetryTask(t)
	task.CaptchaSeen = true
	fx.tasks.Seed(task)

	retried, err := fx.svc.ManualRetry(context.Background(), task.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodEmail, retried.Method)
}

func TestManualRetryRejectsNonTerminalTasks(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	task := manualRetryTask(t)
	retryAt := time.Now().UTC().Add(time.Minute)
	task.RetryAt = &retryAt
	fx.tasks.Seed(task)

	_, err := fx.svc.ManualRetry(context.Background(), task.ID, "operator")
	assert.ErrorIs(t, err, domain.ErrTaskNotRetryable)

	pending, err := domain.NewDeletionTask(
		"acct-2", "example.com", domain.MethodAutomated, 3, 0, uuid.New())
	require.NoError(t, err)
	fx.tasks.Seed(pending)

	_, err = fx.svc.ManualRetry(context.Background(), pending.ID, "operator")
	assert.ErrorIs(t, err, domain.ErrTaskNotRetryable)
}

func TestPauseResumeDelegatesToDispatcher(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)

	fx.svc.Pause(context.Background(), "operator")
	assert.Equal(t, 1, fx.dispatch.pauseCalls)
	assert.True(t, fx.dispatch.Paused())

	fx.svc.Resume(context.Background(), "operator")
	assert.Equal(t, 1, fx.dispatch.resumeCalls)
	assert.False(t, fx.dispatch.Paused())
}

func TestStatsAggregatesCounts(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	fx.seedAccount("acct-1", "example.com")
	fx.seedAccount("acct-2", "other.org")

	_, err := fx.svc.SubmitBatch(context.Background(), "operator", BatchRequest{
		AccountRefs: []string{"acct-1", "acct-2"},
		Parallelism: 1,
	})
	require.NoError(t, err)
	fx.svc.SetInFlightFunc(func() int { return 1 })

	stats, err := fx.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Counts[domain.TaskStatusPending])
	assert.Equal(t, 1, stats.InFlight)
	assert.False(t, stats.Paused)
}

func TestRevealCredentialIsAudited(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	fx.seedAccount("acct-1", "example.com")
	fx.decryptor.Secrets["handle-acct-1"] = "hunter2"

	plaintext, err := fx.svc.RevealCredential(context.Background(), "acct-1", "operator")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plaintext)

	entries := fx.audits.Entries()
	require.NotEmpty(t, entries)
	found := false
	for _, entry := range entries {
		if entry.Action == domain.AuditActionCredentialsReveal {
			found = true
			assert.Equal(t, "operator", entry.Actor)
			assert.NotContains(t, entry.Detail, "hunter2")
		}
	}
	assert.True(t, found)
}

func TestUndoDelegates(t *testing.T) {
	t.Parallel()

	fx := newServiceFixture(t)
	want := uuid.New()
	called := false
	fx.undo.fn = func(ctx context.Context, taskID uuid.UUID, actor string) (*domain.DeletionTask, error) {
		called = true
		assert.Equal(t, want, taskID)
		assert.Equal(t, "operator", actor)
		return nil, domain.ErrUndoWindowExpired
	}

	_, err := fx.svc.Undo(context.Background(), want, "operator")
	assert.ErrorIs(t, err, domain.ErrUndoWindowExpired)
	assert.True(t, called)
}
