package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/store"
)

// MockBatchStore implements store.BatchStore for testing.
type MockBatchStore struct {
	CreateFn  func(ctx context.Context, batch *domain.BatchJob) error
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error)

	mu      sync.Mutex
	batches map[uuid.UUID]*domain.BatchJob
}

// NewMockBatchStore creates a mock store with an empty batch map.
func NewMockBatchStore() *MockBatchStore {
	return &MockBatchStore{
		batches: make(map[uuid.UUID]*domain.BatchJob),
	}
}

// Create implements the BatchStore interface.
func (m *MockBatchStore) Create(ctx context.Context, batch *domain.BatchJob) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, batch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.batches[batch.ID]; exists {
		return store.ErrDuplicate
	}
	c := *batch
	m.batches[batch.ID] = &c
	return nil
}

// GetByID implements the BatchStore interface.
func (m *MockBatchStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[id]
	if !ok {
		return nil, store.ErrBatchNotFound
	}
	c := *batch
	return &c, nil
}

// WithTx implements the BatchStore interface.
func (m *MockBatchStore) WithTx(tx *sql.Tx) store.BatchStore {
	return m
}

// Interface compliance check
var _ store.BatchStore = (*MockBatchStore)(nil)
