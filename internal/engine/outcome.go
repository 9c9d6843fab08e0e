package engine

import (
	"fmt"

	"github.com/wzin/datawipe/internal/domain"
)

// OutcomeKind enumerates the closed set of execution results. Handling
// code switches over it exhaustively; there is no open hierarchy to
// extend.
type OutcomeKind int

// Possible outcome kinds
const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTransientFailure
	OutcomePermanentFailure
	OutcomeNeedsConfirmation
)

// String returns the wire/log name of the kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	case OutcomeNeedsConfirmation:
		return "needs_confirmation"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the typed result of one execution attempt. Reason and
// Message are only set for failures.
type Outcome struct {
	Kind    OutcomeKind
	Reason  domain.FailureReason
	Message string
}

// Success returns a successful outcome: the deletion is done.
func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// TransientFailure returns an outcome the retry controller may retry.
func TransientFailure(reason domain.FailureReason, message string) Outcome {
	return Outcome{Kind: OutcomeTransientFailure, Reason: reason, Message: message}
}

// PermanentFailure returns an outcome that fails the task immediately.
func PermanentFailure(reason domain.FailureReason, message string) Outcome {
	return Outcome{Kind: OutcomePermanentFailure, Reason: reason, Message: message}
}

// NeedsConfirmation returns the outcome of a sent erasure request: the
// deletion itself is asynchronous and resolved by the correlator.
func NeedsConfirmation() Outcome {
	return Outcome{Kind: OutcomeNeedsConfirmation}
}

// TaskError converts a failure outcome into the error recorded on the
// task. Returns nil for non-failure outcomes.
func (o Outcome) TaskError() *domain.TaskError {
	switch o.Kind {
	case OutcomeTransientFailure, OutcomePermanentFailure:
		reason := o.Reason
		if reason == "" {
			reason = domain.ReasonUnknown
		}
		return &domain.TaskError{
			Kind:    reason.Kind(),
			Reason:  reason,
			Message: o.Message,
		}
	default:
		return nil
	}
}
