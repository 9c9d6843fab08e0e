package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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
	"github.com/wzin/datawipe/internal/service"
	"github.com/wzin/datawipe/internal/store"
)

type apiDispatch struct{ paused bool }

func (d *apiDispatch) Pause(ctx context.Context, actor string)   { d.paused = true }
func (d *apiDispatch) Resume(ctx context.Context, actor string)  { d.paused = false }
func (d *apiDispatch) Paused() bool                              { return d.paused }
func (d *apiDispatch) Reconfigure(cfg config.EngineConfig) error { return nil }

type apiUndo struct {
	fn func(ctx context.Context, taskID uuid.UUID, actor string) (*domain.DeletionTask, error)
}

func (u *apiUndo) Undo(ctx context.Context, taskID uuid.UUID, actor string) (*domain.DeletionTask, error) {
	if u.fn == nil {
		return nil, domain.ErrTaskNotUndoable
	}
	return u.fn(ctx, taskID, actor)
}

type apiFixture struct {
	server    http.Handler
	tasks     *mocks.MockTaskStore
	batches   *mocks.MockBatchStore
	audits    *mocks.MockAuditStore
	accounts  *mocks.MockAccountStore
	decryptor *mocks.MockDecryptor
	feed      *events.Feed
	dispatch  *apiDispatch
	undo      *apiUndo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	fx := &apiFixture{
		tasks:     mocks.NewMockTaskStore(),
		batches:   mocks.NewMockBatchStore(),
		audits:    mocks.NewMockAuditStore(),
		accounts:  mocks.NewMockAccountStore(),
		decryptor: &mocks.MockDecryptor{Secrets: map[string]string{}},
		feed:      events.NewFeed(64, nil),
		dispatch:  &apiDispatch{},
		undo:      &apiUndo{},
	}

	cfg := config.EngineConfig{WorkerCount: 5, MaxAttempts: 3}
	svc := service.NewDeletionService(
		cfg, nil,
		fx.tasks, fx.batches, fx.accounts, fx.decryptor,
		audit.NewRecorder(fx.audits, nil), fx.feed,
		fx.dispatch, fx.undo, nil)
	svc.SetTxRunner(func(ctx context.Context, fn store.TxFn) error {
		return fn(ctx, (*sql.Tx)(nil))
	})

	fx.server = NewRouter(NewDeletionHandler(svc, fx.feed, nil))
	return fx
}

func (fx *apiFixture) seedAccount(ref, domainName string) {
	fx.accounts.Accounts[ref] = &accounts.Account{
		Ref:              ref,
		SiteDomain:       domainName,
		CredentialHandle: "handle-" + ref,
	}
}

func (fx *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)
	return rec
}

func TestSubmitBatchEndpoint(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.seedAccount("acct-1", "example.com")
	fx.seedAccount("acct-2", "other.org")

	rec := fx.do(t, http.MethodPost, "/api/batches", SubmitBatchRequest{
		AccountRefs: []string{"acct-1", "acct-2"},
		Parallelism: 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp SubmitBatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.BatchID)
	assert.Len(t, resp.TaskIDs, 2)
}

func TestSubmitBatchEndpointRejectsBadRequests(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.seedAccount("acct-1", "example.com")

	cases := map[string]SubmitBatchRequest{
		"no accounts":      {Parallelism: 2},
		"bad parallelism":  {AccountRefs: []string{"acct-1"}, Parallelism: 11},
		"bad max attempts": {AccountRefs: []string{"acct-1"}, Parallelism: 2, MaxAttempts: 9},
	}
	for name, req := range cases {
		req := req
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec := fx.do(t, http.MethodPost, "/api/batches", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSubmitBatchEndpointUnknownAccount(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/batches", SubmitBatchRequest{
		AccountRefs: []string{"missing"},
		Parallelism: 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTaskEndpoint(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	task, err := domain.NewDeletionTask(
		"acct-1", "example.com", domain.MethodAutomated, 3, 0, uuid.New())
	require.NoError(t, err)
	fx.tasks.Seed(task)

	rec := fx.do(t, http.MethodGet, "/api/tasks/"+task.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.DeletionTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "example.com", got.SiteDomain)

	rec = fx.do(t, http.MethodGet, "/api/tasks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = fx.do(t, http.MethodGet, "/api/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasksEndpointFilters(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	batchID := uuid.New()
	for i := 0; i < 3; i++ {
		task, err := domain.NewDeletionTask(
			fmt.Sprintf("acct-%d", i), "example.com", domain.MethodAutomated, 3, 0, batchID)
		require.NoError(t, err)
		if i == 0 {
			task.Status = domain.TaskStatusFailed
		}
		fx.tasks.Seed(task)
	}

	rec := fx.do(t, http.MethodGet, "/api/tasks?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	rec = fx.do(t, http.MethodGet, "/api/tasks?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualRetryEndpoint(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	task, err := domain.NewDeletionTask(
		"acct-1", "example.com", domain.MethodAutomated, 3, 0, uuid.New())
	require.NoError(t, err)
	task.Status = domain.TaskStatusFailed
	task.Attempts = 3
	fx.tasks.Seed(task)

	rec := fx.do(t, http.MethodPost, "/api/tasks/"+task.ID.String()+"/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.DeletionTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.Zero(t, got.Attempts)
}

func TestManualRetryEndpointConflictsOnNonTerminal(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	task, err := domain.NewDeletionTask(
		"acct-1", "example.com", domain.MethodAutomated, 3, 0, uuid.New())
	require.NoError(t, err)
	fx.tasks.Seed(task)

	rec := fx.do(t, http.MethodPost, "/api/tasks/"+task.ID.String()+"/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUndoEndpointMapsWindowExpiry(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.undo.fn = func(ctx context.Context, taskID uuid.UUID, actor string) (*domain.DeletionTask, error) {
		return nil, domain.ErrUndoWindowExpired
	}

	rec := fx.do(t, http.MethodPost, "/api/tasks/"+uuid.NewString()+"/undo", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPauseResumeEndpoints(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/engine/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fx.dispatch.paused)

	var state EngineStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.Paused)

	rec = fx.do(t, http.MethodPost, "/api/engine/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, fx.dispatch.paused)
}

func TestEventsEndpointCursor(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	task, err := domain.NewDeletionTask(
		"acct-1", "example.com", domain.MethodAutomated, 3, 0, uuid.New())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		from := task.Status
		task.Status = domain.TaskStatusInProgress
		fx.feed.Publish(events.NewTransitionEvent(task, from, "claimed"))
	}

	rec := fx.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Events, 3)
	assert.Equal(t, uint64(3), page.Next)

	rec = fx.do(t, http.MethodGet, fmt.Sprintf("/api/events?after=%d", page.Next), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Events)
	assert.Equal(t, uint64(3), page.Next)
}

func TestRevealCredentialEndpoint(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.seedAccount("acct-1", "example.com")
	fx.decryptor.Secrets["handle-acct-1"] = "hunter2"

	rec := fx.do(t, http.MethodPost, "/api/credentials/reveal", RevealCredentialRequest{
		AccountRef: "acct-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RevealCredentialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hunter2", resp.Credential)

	require.NotEmpty(t, fx.audits.Actions())
	assert.Contains(t, fx.audits.Actions(), domain.AuditActionCredentialsReveal)
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	task, err := domain.NewDeletionTask(
		"acct-1", "example.com", domain.MethodAutomated, 3, 0, uuid.New())
	require.NoError(t, err)
	now := time.Now().UTC()
	task.Status = domain.TaskStatusCompleted
	task.CompletedAt = &now
	fx.tasks.Seed(task)

	rec := fx.do(t, http.MethodGet, "/api/engine/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 1, resp.Stats.Total)
	assert.Equal(t, 1, resp.Stats.Counts[domain.TaskStatusCompleted])
}
