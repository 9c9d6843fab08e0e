package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/wzin/datawipe/internal/domain"
	"github.com/wzin/datawipe/internal/store"
)

// MockAuditStore implements store.AuditStore for testing. Appended
// entries are kept in order so tests can assert on the trail.
type MockAuditStore struct {
	AppendFn func(ctx context.Context, entry *domain.AuditEntry) error
	ListFn   func(ctx context.Context, filter store.AuditFilter) ([]*domain.AuditEntry, error)

	mu      sync.Mutex
	entries []*domain.AuditEntry
}

// NewMockAuditStore creates an empty mock audit store.
func NewMockAuditStore() *MockAuditStore {
	return &MockAuditStore{}
}

// Entries returns a copy of the appended entries in append order.
func (m *MockAuditStore) Entries() []*domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Actions returns the actions of all appended entries in append order.
func (m *MockAuditStore) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

// Append implements the AuditStore interface.
func (m *MockAuditStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// List implements the AuditStore interface.
func (m *MockAuditStore) List(ctx context.Context, filter store.AuditFilter) ([]*domain.AuditEntry, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.TaskID != nil && (e.TaskID == nil || *e.TaskID != *filter.TaskID) {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// WithTx implements the AuditStore interface.
func (m *MockAuditStore) WithTx(tx *sql.Tx) store.AuditStore {
	return m
}

// Interface compliance check
var _ store.AuditStore = (*MockAuditStore)(nil)
