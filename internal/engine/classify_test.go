package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wzin/datawipe/internal/domain"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantReason domain.FailureReason
		wantKind   OutcomeKind
	}{
		{
			name:       "captcha challenge",
			err:        errors.New("page presented a CAPTCHA challenge"),
			wantReason: domain.ReasonCaptchaDetected,
			wantKind:   OutcomeTransientFailure,
		},
		{
			name:       "login rejected",
			err:        errors.New("login failed: invalid password"),
			wantReason: domain.ReasonLoginFailed,
			wantKind:   OutcomeTransientFailure,
		},
		{
			name:       "selector missing",
			err:        errors.New("selector #delete-account not found"),
			wantReason: domain.ReasonSelectorNotFound,
			wantKind:   OutcomeTransientFailure,
		},
		{
			name:       "navigation timeout",
			err:        errors.New("navigation timed out after 30s"),
			wantReason: domain.ReasonTimeout,
			wantKind:   OutcomeTransientFailure,
		},
		{
			name:       "site down",
			err:        errors.New("GET https://example.com: 503 service unavailable"),
			wantReason: domain.ReasonSiteUnreachable,
			wantKind:   OutcomeTransientFailure,
		},
		{
			name:       "context cancelled",
			err:        context.Canceled,
			wantReason: domain.ReasonTimeout,
			wantKind:   OutcomeTransientFailure,
		},
		{
			name:       "deadline exceeded",
			err:        context.DeadlineExceeded,
			wantReason: domain.ReasonTimeout,
			wantKind:   OutcomeTransientFailure,
		},
		{
			name:       "unrecognized error",
			err:        errors.New("something novel happened"),
			wantReason: domain.ReasonUnknown,
			wantKind:   OutcomeTransientFailure,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			outcome := ClassifyError(tc.err)
			assert.Equal(t, tc.wantReason, outcome.Reason)
			assert.Equal(t, tc.wantKind, outcome.Kind)
		})
	}
}

func TestClassifyNilError(t *testing.T) {
	t.Parallel()
	assert.Equal(t, OutcomeSuccess, ClassifyError(nil).Kind)
}
