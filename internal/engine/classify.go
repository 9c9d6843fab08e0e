package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/wzin/datawipe/internal/domain"
)

// classification rules, checked in order: the first rule whose terms
// match the lowercased error text wins.
var classifyRules = []struct {
	reason domain.FailureReason
	terms  []string
}{
	{domain.ReasonCaptchaDetected, []string{"captcha", "robot", "challenge"}},
	{domain.ReasonLoginFailed, []string{"login", "password", "credential", "auth"}},
	{domain.ReasonSelectorNotFound, []string{"selector", "element not found", "no such element"}},
	{domain.ReasonTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{domain.ReasonSiteUnreachable, []string{"unreachable", "connection refused", "no such host", "503", "500", "unavailable", "maintenance"}},
}

// ClassifyError maps a raw collaborator error onto the failure taxonomy
// and returns the corresponding outcome. Context cancellation and
// deadline errors are treated as timeouts so an aborted automation run
// re-enters the retry path.
func ClassifyError(err error) Outcome {
	if err == nil {
		return Success()
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TransientFailure(domain.ReasonTimeout, err.Error())
	}

	lower := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, term := range rule.terms {
			if strings.Contains(lower, term) {
				return outcomeForReason(rule.reason, err.Error())
			}
		}
	}

	return TransientFailure(domain.ReasonUnknown, err.Error())
}

// outcomeForReason picks the outcome variant matching a reason's place
// in the taxonomy. Blocking and structural reasons still come back as
// transient outcomes here; the retry controller applies their special
// handling (captcha fails immediately, structural counts toward the
// method switch).
func outcomeForReason(reason domain.FailureReason, message string) Outcome {
	switch reason.Kind() {
	case domain.FailureTerminal:
		return PermanentFailure(reason, message)
	default:
		return TransientFailure(reason, message)
	}
}
