package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a deletion task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending              TaskStatus = "pending"
	TaskStatusInProgress           TaskStatus = "in_progress"
	TaskStatusAwaitingConfirmation TaskStatus = "awaiting_confirmation"
	TaskStatusCompleted            TaskStatus = "completed"
	TaskStatusFailed               TaskStatus = "failed"
	TaskStatusArchived             TaskStatus = "archived"
)

// DeletionMethod identifies how a deletion is attempted.
// The set is closed: handling code switches exhaustively over it.
type DeletionMethod string

// Possible deletion methods
const (
	MethodAutomated DeletionMethod = "automated"
	MethodEmail     DeletionMethod = "email"
	MethodManual    DeletionMethod = "manual"
)

// FailureKind classifies an execution failure for retry decisions.
type FailureKind string

// Failure taxonomy. Transient failures are retried with backoff,
// structural failures count toward attempts and eventually force the
// email method, blocking failures force the email method immediately,
// and terminal failures require manual action.
const (
	FailureTransient  FailureKind = "transient"
	FailureStructural FailureKind = "structural"
	FailureBlocking   FailureKind = "blocking"
	FailureTerminal   FailureKind = "terminal"
)

// FailureReason is the concrete reason reported by an executor.
type FailureReason string

// Executor failure reasons
const (
	ReasonCaptchaDetected  FailureReason = "captcha_detected"
	ReasonLoginFailed      FailureReason = "login_failed"
	ReasonSelectorNotFound FailureReason = "selector_not_found"
	ReasonSiteUnreachable  FailureReason = "site_unreachable"
	ReasonTimeout          FailureReason = "timeout"
	ReasonNoContactAddress FailureReason = "no_contact_address"
	ReasonSendFailed       FailureReason = "send_failed"
	ReasonNoExecutor       FailureReason = "no_executor"
	ReasonUnknown          FailureReason = "unknown"
)

// Kind maps a failure reason onto the retry taxonomy. login_failed is
// structural: stored credentials that stop working stay broken across
// retries the same way a changed page layout does, so repeats count
// toward the switch to the email method.
func (r FailureReason) Kind() FailureKind {
	switch r {
	case ReasonSiteUnreachable, ReasonTimeout, ReasonSendFailed:
		return FailureTransient
	case ReasonSelectorNotFound, ReasonLoginFailed:
		return FailureStructural
	case ReasonCaptchaDetected:
		return FailureBlocking
	case ReasonNoContactAddress, ReasonNoExecutor:
		return FailureTerminal
	default:
		return FailureTransient
	}
}

// TaskError records the last failure observed for a task.
type TaskError struct {
	Kind    FailureKind   `json:"kind"`
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message"`
}

// Common validation errors for DeletionTask
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptyAccountRef     = errors.New("task account reference cannot be empty")
	ErrEmptySiteDomain     = errors.New("task site domain cannot be empty")
	ErrEmptyBatchID        = errors.New("task batch ID cannot be empty")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidMethod       = errors.New("invalid deletion method")
	ErrInvalidMaxAttempts  = errors.New("max attempts must be between 1 and 5")
	ErrAttemptsOutOfRange  = errors.New("attempts cannot exceed max attempts")
	ErrInvalidTransition   = errors.New("invalid task status transition")
	ErrUndoWindowExpired   = errors.New("undo window has expired")
	ErrTaskNotUndoable     = errors.New("task is not in an undoable state")
	ErrTaskNotRetryable    = errors.New("task is not in a manually retryable state")
	ErrTaskArchived        = errors.New("archived tasks are immutable")
	ErrEmptyCorrelationTok = errors.New("task correlation token cannot be empty")
)

// DeletionTask is one unit of account-deletion work. The account itself
// is owned by the external account store; the task carries only an
// opaque reference plus the site domain it was resolved to at creation
// time, so dispatch and correlation never need the account record.
type DeletionTask struct {
	ID                 uuid.UUID      `json:"id"`
	AccountRef         string         `json:"account_ref"`
	SiteDomain         string         `json:"site_domain"`
	Method             DeletionMethod `json:"method"`
	Status             TaskStatus     `json:"status"`
	Attempts           int            `json:"attempts"`
	MaxAttempts        int            `json:"max_attempts"`
	StructuralFailures int            `json:"structural_failures"`
	CaptchaSeen        bool           `json:"captcha_seen"`
	LastError          *TaskError     `json:"last_error,omitempty"`
	RetryAt            *time.Time     `json:"retry_at,omitempty"`
	CorrelationToken   string         `json:"correlation_token"`
	UndoDeadline       *time.Time     `json:"undo_deadline,omitempty"`
	ConfirmationDueAt  *time.Time     `json:"confirmation_due_at,omitempty"`
	OverdueFlaggedAt   *time.Time     `json:"overdue_flagged_at,omitempty"`
	Priority           int            `json:"priority"`
	BatchID            uuid.UUID      `json:"batch_id"`
	HeartbeatAt        *time.Time     `json:"heartbeat_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
}

// NewDeletionTask creates a pending task for the given account under the
// given batch. A fresh correlation token is generated; it stays with the
// task for its whole life so an emailed deletion request can be matched
// back to it weeks later.
func NewDeletionTask(
	accountRef string,
	siteDomain string,
	method DeletionMethod,
	maxAttempts int,
	priority int,
	batchID uuid.UUID,
) (*DeletionTask, error) {
	now := time.Now().UTC()
	task := &DeletionTask{
		ID:               uuid.New(),
		AccountRef:       accountRef,
		SiteDomain:       normalizeDomain(siteDomain),
		Method:           method,
		Status:           TaskStatusPending,
		Attempts:         0,
		MaxAttempts:      maxAttempts,
		CorrelationToken: NewCorrelationToken(),
		Priority:         priority,
		BatchID:          batchID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the task's field invariants.
func (t *DeletionTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.AccountRef == "" {
		return ErrEmptyAccountRef
	}
	if t.SiteDomain == "" {
		return ErrEmptySiteDomain
	}
	if t.BatchID == uuid.Nil {
		return ErrEmptyBatchID
	}
	if t.CorrelationToken == "" {
		return ErrEmptyCorrelationTok
	}
	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}
	if !isValidMethod(t.Method) {
		return ErrInvalidMethod
	}
	if t.MaxAttempts < 1 || t.MaxAttempts > 5 {
		return ErrInvalidMaxAttempts
	}
	if !t.IsTerminal() && t.Attempts > t.MaxAttempts {
		return ErrAttemptsOutOfRange
	}
	return nil
}

// IsTerminal reports whether the task has reached a state that only an
// explicit operator action (manual retry) or nothing at all (archived)
// can leave.
func (t *DeletionTask) IsTerminal() bool {
	if t.Status == TaskStatusArchived {
		return true
	}
	return t.Status == TaskStatusFailed && t.RetryAt == nil
}

// RetryScheduled reports whether the task is in the failed-retryable
// sub-state: failed, but with a retry_at in place so the dispatcher will
// pick it up again.
func (t *DeletionTask) RetryScheduled() bool {
	return t.Status == TaskStatusFailed && t.RetryAt != nil
}

// CanTransition reports whether moving this task to the given status is
// allowed by the deletion state machine.
func (t *DeletionTask) CanTransition(to TaskStatus) bool {
	return ValidTransition(t.Status, to)
}

// ValidTransition encodes the global task state machine:
//
//	pending → in_progress
//	in_progress → completed | awaiting_confirmation | failed
//	failed → pending (retry elapsed or manual retry) | in_progress (claim)
//	awaiting_confirmation → completed
//	completed → archived (sweep) | pending (undo before deadline)
//
// archived is terminal and immutable.
func ValidTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusInProgress
	case TaskStatusInProgress:
		return to == TaskStatusCompleted ||
			to == TaskStatusAwaitingConfirmation ||
			to == TaskStatusFailed
	case TaskStatusFailed:
		return to == TaskStatusPending || to == TaskStatusInProgress
	case TaskStatusAwaitingConfirmation:
		return to == TaskStatusCompleted
	case TaskStatusCompleted:
		return to == TaskStatusArchived || to == TaskStatusPending
	case TaskStatusArchived:
		return false
	default:
		return false
	}
}

// UndoableAt reports whether the task can still be reverted at the given
// instant. Returns ErrTaskNotUndoable if the task is not completed, and
// ErrUndoWindowExpired if the deadline has passed or was never set.
func (t *DeletionTask) UndoableAt(now time.Time) error {
	if t.Status != TaskStatusCompleted {
		if t.Status == TaskStatusArchived {
			return ErrTaskArchived
		}
		return ErrTaskNotUndoable
	}
	if t.UndoDeadline == nil || !now.Before(*t.UndoDeadline) {
		return ErrUndoWindowExpired
	}
	return nil
}

// NewCorrelationToken returns an opaque token embedded in outgoing
// deletion-request emails. Derived from a fresh UUID, so it is unique
// among active tasks by construction.
func NewCorrelationToken() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "DW-" + raw[:20]
}

// normalizeDomain lowercases a site domain and strips a leading www.
func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(d, "www.")
}

func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusAwaitingConfirmation,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusArchived:
		return true
	default:
		return false
	}
}

func isValidMethod(method DeletionMethod) bool {
	switch method {
	case MethodAutomated, MethodEmail, MethodManual:
		return true
	default:
		return false
	}
}
