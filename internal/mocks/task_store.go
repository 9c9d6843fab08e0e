package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/store"
)

// MockTaskStore implements store.TaskStore for testing. The default
// implementation is an in-memory map guarded by a mutex, so concurrent
// dispatcher tests exercise the same atomicity the SQL store provides.
type MockTaskStore struct {
	// Function fields for customizable behavior
	CreateFn                   func(ctx context.Context, task *domain.DeletionTask) error
	GetByIDFn                  func(ctx context.Context, id uuid.UUID) (*domain.DeletionTask, error)
	GetByCorrelationTokenFn    func(ctx context.Context, token string) (*domain.DeletionTask, error)
	ListFn                     func(ctx context.Context, filter store.TaskFilter) ([]*domain.DeletionTask, error)
	ListReadyFn                func(ctx context.Context, now time.Time, limit int) ([]*domain.DeletionTask, error)
	ClaimFn                    func(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	UpdateFn                   func(ctx context.Context, task *domain.DeletionTask) error
	HeartbeatFn                func(ctx context.Context, id uuid.UUID, now time.Time) error
	ListAwaitingConfirmationFn func(ctx context.Context) ([]*domain.DeletionTask, error)
	ListStaleClaimsFn          func(ctx context.Context, olderThan time.Duration, now time.Time) ([]*domain.DeletionTask, error)
	ListArchivableFn           func(ctx context.Context, undoWindow time.Duration, now time.Time) ([]*domain.DeletionTask, error)
	CountByStatusFn            func(ctx context.Context) (map[domain.TaskStatus]int, error)

	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.DeletionTask
}

// NewMockTaskStore creates a mock store with an empty task map.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[uuid.UUID]*domain.DeletionTask),
	}
}

// Seed inserts tasks directly, bypassing validation.
func (m *MockTaskStore) Seed(tasks ...*domain.DeletionTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		m.tasks[t.ID] = copyTask(t)
	}
}

// Snapshot returns a copy of the stored task, or nil if absent.
func (m *MockTaskStore) Snapshot(id uuid.UUID) *domain.DeletionTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil
	}
	return copyTask(t)
}

// Create implements the TaskStore interface.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.DeletionTask) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}
	m.tasks[task.ID] = copyTask(task)
	return nil
}

// GetByID implements the TaskStore interface.
func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeletionTask, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(task), nil
}

// GetByCorrelationToken implements the TaskStore interface.
func (m *MockTaskStore) GetByCorrelationToken(ctx context.Context, token string) (*domain.DeletionTask, error) {
	if m.GetByCorrelationTokenFn != nil {
		return m.GetByCorrelationTokenFn(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range m.tasks {
		if task.CorrelationToken == token && !task.IsTerminal() {
			return copyTask(task), nil
		}
	}
	return nil, store.ErrTaskNotFound
}

// List implements the TaskStore interface.
func (m *MockTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.DeletionTask, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DeletionTask
	for _, task := range m.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.BatchID != nil && task.BatchID != *filter.BatchID {
			continue
		}
		if filter.Method != nil && task.Method != *filter.Method {
			continue
		}
		out = append(out, copyTask(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListReady implements the TaskStore interface.
func (m *MockTaskStore) ListReady(ctx context.Context, now time.Time, limit int) ([]*domain.DeletionTask, error) {
	if m.ListReadyFn != nil {
		return m.ListReadyFn(ctx, now, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DeletionTask
	for _, task := range m.tasks {
		if isReady(task, now) {
			out = append(out, copyTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Claim implements the TaskStore interface. The entire check-and-set
// runs under the mutex, mirroring the SQL store's atomic UPDATE.
func (m *MockTaskStore) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	if m.ClaimFn != nil {
		return m.ClaimFn(ctx, id, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	if !isReady(task, now) {
		return false, nil
	}
	task.Status = domain.TaskStatusInProgress
	hb := now
	task.HeartbeatAt = &hb
	task.UpdatedAt = now
	return true, nil
}

// Update implements the TaskStore interface.
func (m *MockTaskStore) Update(ctx context.Context, task *domain.DeletionTask) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	if stored.Status == domain.TaskStatusArchived {
		return store.ErrTaskArchived
	}
	task.UpdatedAt = time.Now().UTC()
	m.tasks[task.ID] = copyTask(task)
	return nil
}

// Heartbeat implements the TaskStore interface.
func (m *MockTaskStore) Heartbeat(ctx context.Context, id uuid.UUID, now time.Time) error {
	if m.HeartbeatFn != nil {
		return m.HeartbeatFn(ctx, id, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	hb := now
	task.HeartbeatAt = &hb
	return nil
}

// ListAwaitingConfirmation implements the TaskStore interface.
func (m *MockTaskStore) ListAwaitingConfirmation(ctx context.Context) ([]*domain.DeletionTask, error) {
	if m.ListAwaitingConfirmationFn != nil {
		return m.ListAwaitingConfirmationFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DeletionTask
	for _, task := range m.tasks {
		if task.Status == domain.TaskStatusAwaitingConfirmation {
			out = append(out, copyTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListStaleClaims implements the TaskStore interface.
func (m *MockTaskStore) ListStaleClaims(ctx context.Context, olderThan time.Duration, now time.Time) ([]*domain.DeletionTask, error) {
	if m.ListStaleClaimsFn != nil {
		return m.ListStaleClaimsFn(ctx, olderThan, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-olderThan)
	var out []*domain.DeletionTask
	for _, task := range m.tasks {
		if task.Status != domain.TaskStatusInProgress {
			continue
		}
		if task.HeartbeatAt == nil || task.HeartbeatAt.Before(cutoff) {
			out = append(out, copyTask(task))
		}
	}
	return out, nil
}

// ListArchivable implements the TaskStore interface.
func (m *MockTaskStore) ListArchivable(ctx context.Context, undoWindow time.Duration, now time.Time) ([]*domain.DeletionTask, error) {
	if m.ListArchivableFn != nil {
		return m.ListArchivableFn(ctx, undoWindow, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DeletionTask
	for _, task := range m.tasks {
		if task.Status != domain.TaskStatusCompleted {
			continue
		}
		switch {
		case task.UndoDeadline != nil:
			if !now.Before(*task.UndoDeadline) {
				out = append(out, copyTask(task))
			}
		case task.CompletedAt != nil:
			if !now.Before(task.CompletedAt.Add(undoWindow)) {
				out = append(out, copyTask(task))
			}
		}
	}
	return out, nil
}

// CountByStatus implements the TaskStore interface.
func (m *MockTaskStore) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.TaskStatus]int)
	for _, task := range m.tasks {
		counts[task.Status]++
	}
	return counts, nil
}

// WithTx implements the TaskStore interface. The mock has no real
// transactions; it returns itself.
func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

func isReady(task *domain.DeletionTask, now time.Time) bool {
	switch task.Status {
	case domain.TaskStatusPending:
		return true
	case domain.TaskStatusFailed:
		return task.RetryAt != nil && !now.Before(*task.RetryAt)
	default:
		return false
	}
}

func copyTask(t *domain.DeletionTask) *domain.DeletionTask {
	c := *t
	return &c
}

// Interface compliance check
var _ store.TaskStore = (*MockTaskStore)(nil)
