package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/store"
)

// MockConfirmationStore implements store.ConfirmationStore for testing.
type MockConfirmationStore struct {
	CreateFn               func(ctx context.Context, event *domain.ConfirmationEvent) error
	GetBySourceMessageIDFn func(ctx context.Context, messageID string) (*domain.ConfirmationEvent, error)
	ListForTaskFn          func(ctx context.Context, taskID uuid.UUID) ([]*domain.ConfirmationEvent, error)
	ListPendingReviewFn    func(ctx context.Context) ([]*domain.ConfirmationEvent, error)

	mu     sync.Mutex
	events map[string]*domain.ConfirmationEvent
}

// NewMockConfirmationStore creates a mock store with an empty event map.
func NewMockConfirmationStore() *MockConfirmationStore {
	return &MockConfirmationStore{
		events: make(map[string]*domain.ConfirmationEvent),
	}
}

// Events returns a copy of all stored events.
func (m *MockConfirmationStore) Events() []*domain.ConfirmationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ConfirmationEvent, 0, len(m.events))
	for _, e := range m.events {
		c := *e
		out = append(out, &c)
	}
	return out
}

// Create implements the ConfirmationStore interface.
func (m *MockConfirmationStore) Create(ctx context.Context, event *domain.ConfirmationEvent) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[event.SourceMessageID]; exists {
		return store.ErrDuplicateMessage
	}
	c := *event
	m.events[event.SourceMessageID] = &c
	return nil
}

// GetBySourceMessageID implements the ConfirmationStore interface.
func (m *MockConfirmationStore) GetBySourceMessageID(ctx context.Context, messageID string) (*domain.ConfirmationEvent, error) {
	if m.GetBySourceMessageIDFn != nil {
		return m.GetBySourceMessageIDFn(ctx, messageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[messageID]
	if !ok {
		return nil, store.ErrConfirmationNotFound
	}
	c := *event
	return &c, nil
}

// ListForTask implements the ConfirmationStore interface.
func (m *MockConfirmationStore) ListForTask(ctx context.Context, taskID uuid.UUID) ([]*domain.ConfirmationEvent, error) {
	if m.ListForTaskFn != nil {
		return m.ListForTaskFn(ctx, taskID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ConfirmationEvent
	for _, e := range m.events {
		if e.TaskID == taskID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// ListPendingReview implements the ConfirmationStore interface.
func (m *MockConfirmationStore) ListPendingReview(ctx context.Context) ([]*domain.ConfirmationEvent, error) {
	if m.ListPendingReviewFn != nil {
		return m.ListPendingReviewFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ConfirmationEvent
	for _, e := range m.events {
		if !e.Applied {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// WithTx implements the ConfirmationStore interface.
func (m *MockConfirmationStore) WithTx(tx *sql.Tx) store.ConfirmationStore {
	return m
}

// Interface compliance check
var _ store.ConfirmationStore = (*MockConfirmationStore)(nil)
