package engine

import (
	"sync"
	"time"

	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/domain"
)

// Transition describes what the retry controller did to a task, so the
// dispatcher can audit and publish it without re-deriving the decision.
type Transition struct {
	From        domain.TaskStatus
	AuditAction string
	Detail      map[string]interface{}
}

// RetryController interprets executor outcomes and computes the task's
// next state. It holds the retry tunables behind a mutex so a guarded
// reconfigure can swap them while workers run.
type RetryController struct {
	mu                  sync.RWMutex
	maxAttempts         int
	baseDelay           time.Duration
	maxDelay            time.Duration
	confirmationTimeout time.Duration
}

// NewRetryController creates a controller from the engine configuration.
func NewRetryController(cfg config.EngineConfig) *RetryController {
	c := &RetryController{}
	c.Reconfigure(cfg)
	return c
}

// Reconfigure swaps the retry tunables. Safe to call while workers are
// applying outcomes.
func (c *RetryController) Reconfigure(cfg config.EngineConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxAttempts = cfg.MaxAttempts
	c.baseDelay = cfg.BaseRetryDelay
	c.maxDelay = cfg.MaxRetryDelay
	c.confirmationTimeout = cfg.ConfirmationTimeout
}

// Backoff returns the exponential delay scheduled after the given
// attempt number (1-based): base_delay * 2^(attempt-1), capped at the
// configured maximum. A zero maximum means no cap.
func (c *RetryController) Backoff(attempt int) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if attempt < 1 {
		attempt = 1
	}
	delay := c.baseDelay << uint(attempt-1)
	if c.maxDelay > 0 && delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

// Apply folds an execution outcome into the task's state. The task must
// currently hold the in_progress claim. The returned transition names
// the audit action describing what happened.
func (c *RetryController) Apply(task *domain.DeletionTask, outcome Outcome, now time.Time) Transition {
	from := task.Status

	switch outcome.Kind {
	case OutcomeSuccess:
		task.Status = domain.TaskStatusCompleted
		completed := now
		task.CompletedAt = &completed
		task.RetryAt = nil
		task.LastError = nil
		return Transition{
			From:        from,
			AuditAction: domain.AuditActionTaskCompleted,
			Detail: map[string]interface{}{
				"method": string(task.Method),
			},
		}

	case OutcomeNeedsConfirmation:
		c.mu.RLock()
		timeout := c.confirmationTimeout
		c.mu.RUnlock()

		task.Status = domain.TaskStatusAwaitingConfirmation
		due := now.Add(timeout)
		task.ConfirmationDueAt = &due
		task.RetryAt = nil
		task.LastError = nil
		return Transition{
			From:        from,
			AuditAction: domain.AuditActionAwaitingConfirm,
			Detail: map[string]interface{}{
				"correlation_token":   task.CorrelationToken,
				"confirmation_due_at": due,
			},
		}

	case OutcomePermanentFailure:
		task.Attempts++
		task.Status = domain.TaskStatusFailed
		task.RetryAt = nil
		task.LastError = outcome.TaskError()
		return Transition{
			From:        from,
			AuditAction: domain.AuditActionTaskFailed,
			Detail: map[string]interface{}{
				"reason":   string(outcome.Reason),
				"attempts": task.Attempts,
			},
		}

	case OutcomeTransientFailure:
		task.Attempts++
		task.LastError = outcome.TaskError()

		// A CAPTCHA blocks the automated path outright: retrying against
		// the same challenge wastes attempts. The task fails now and the
		// selector picks email on the next (manual) resubmission.
		if outcome.Reason == domain.ReasonCaptchaDetected {
			task.CaptchaSeen = true
			task.Status = domain.TaskStatusFailed
			task.RetryAt = nil
			return Transition{
				From:        from,
				AuditAction: domain.AuditActionTaskFailed,
				Detail: map[string]interface{}{
					"reason":   string(domain.ReasonCaptchaDetected),
					"blocking": true,
					"attempts": task.Attempts,
				},
			}
		}

		if outcome.Reason.Kind() == domain.FailureStructural {
			task.StructuralFailures++
		}

		maxAttempts := task.MaxAttempts
		if maxAttempts <= 0 {
			c.mu.RLock()
			maxAttempts = c.maxAttempts
			c.mu.RUnlock()
		}

		if task.Attempts < maxAttempts {
			retryAt := now.Add(c.Backoff(task.Attempts))
			task.Status = domain.TaskStatusFailed
			task.RetryAt = &retryAt
			return Transition{
				From:        from,
				AuditAction: domain.AuditActionRetryScheduled,
				Detail: map[string]interface{}{
					"reason":   string(outcome.Reason),
					"attempts": task.Attempts,
					"retry_at": retryAt,
				},
			}
		}

		task.Status = domain.TaskStatusFailed
		task.RetryAt = nil
		return Transition{
			From:        from,
			AuditAction: domain.AuditActionAttemptsExhausted,
			Detail: map[string]interface{}{
				"reason":   string(outcome.Reason),
				"attempts": task.Attempts,
			},
		}

	default:
		// Closed variant; unreachable unless a new kind is added without
		// handling. Fail the task rather than lose it.
		task.Status = domain.TaskStatusFailed
		task.RetryAt = nil
		task.LastError = &domain.TaskError{
			Kind:    domain.FailureTerminal,
			Reason:  domain.ReasonUnknown,
			Message: "unhandled outcome kind " + outcome.Kind.String(),
		}
		return Transition{
			From:        from,
			AuditAction: domain.AuditActionTaskFailed,
			Detail: map[string]interface{}{
				"reason": "unhandled_outcome",
			},
		}
	}
}
