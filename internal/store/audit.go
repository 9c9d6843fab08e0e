package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/wzin/datawipe/internal/domain"
)

// AuditFilter narrows audit queries. Nil fields are ignored.
type AuditFilter struct {
	TaskID *uuid.UUID
	Action string
	Limit  int
	Offset int
}

// AuditStore is the append-only sink for the audit trail. There is no
// update or delete operation: entries are immutable once written.
type AuditStore interface {
	// Append writes one audit entry.
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// List retrieves entries matching the filter, newest first.
	List(ctx context.Context, filter AuditFilter) ([]*domain.AuditEntry, error)

	// WithTx returns an AuditStore bound to the given transaction.
	WithTx(tx *sql.Tx) AuditStore
}
