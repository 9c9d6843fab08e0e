package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the engine. Every state transition performed
// by any component produces one of these, including no-op skips.
const (
	AuditActionBatchSubmitted      = "batch_submitted"
	AuditActionTaskCreated         = "task_created"
	AuditActionTaskClaimed         = "task_claimed"
	AuditActionTaskCompleted       = "task_completed"
	AuditActionTaskFailed          = "task_failed"
	AuditActionRetryScheduled      = "retry_scheduled"
	AuditActionAttemptsExhausted   = "attempts_exhausted"
	AuditActionMethodSwitched      = "method_switched"
	AuditActionAwaitingConfirm     = "awaiting_confirmation"
	AuditActionConfirmationMatched = "confirmation_matched"
	AuditActionConfirmationLow     = "confirmation_low_confidence"
	AuditActionConfirmationDupe    = "confirmation_duplicate_skipped"
	AuditActionConfirmOverdue      = "confirmation_overdue"
	AuditActionTaskArchived        = "task_archived"
	AuditActionTaskUndone          = "task_undone"
	AuditActionManualRetry         = "manual_retry"
	AuditActionStaleRequeued       = "stale_claim_requeued"
	AuditActionDispatchPaused      = "dispatch_paused"
	AuditActionDispatchResumed     = "dispatch_resumed"
	AuditActionCredentialsReveal   = "credentials_revealed"
)

// Common validation errors for AuditEntry
var (
	ErrEmptyAuditID     = errors.New("audit entry ID cannot be empty")
	ErrEmptyAuditAction = errors.New("audit entry action cannot be empty")
)

// AuditEntry is one immutable line of the audit trail. TaskID is nil for
// entries that are not tied to a single task (batch submission, pause).
// Detail payloads never contain cleartext credentials; the recorder masks
// sensitive keys before the entry reaches the store.
type AuditEntry struct {
	ID        uuid.UUID              `json:"id"`
	TaskID    *uuid.UUID             `json:"task_id,omitempty"`
	Action    string                 `json:"action"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Actor     string                 `json:"actor"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewAuditEntry creates an audit entry for the given action. taskID may
// be nil for engine-wide actions.
func NewAuditEntry(taskID *uuid.UUID, action, actor string, detail map[string]interface{}) (*AuditEntry, error) {
	entry := &AuditEntry{
		ID:        uuid.New(),
		TaskID:    taskID,
		Action:    action,
		Detail:    detail,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks the entry's field invariants.
func (e *AuditEntry) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyAuditID
	}
	if e.Action == "" {
		return ErrEmptyAuditAction
	}
	return nil
}
