package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/domain"
)

// testEngineConfig returns engine tunables suitable for fast tests.
func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		WorkerCount:              5,
		MaxAttempts:              5,
		BaseRetryDelay:           time.Second,
		MaxRetryDelay:            60 * time.Second,
		DispatchInterval:         10 * time.Millisecond,
		HeartbeatInterval:        10 * time.Millisecond,
		StaleClaimAge:            time.Minute,
		ConfirmationTimeout:      720 * time.Hour,
		ConfirmationPollInterval: 10 * time.Millisecond,
		ConfidenceThreshold:      0.75,
		LookbackWindow:           14 * 24 * time.Hour,
		UndoWindow:               24 * time.Hour,
		SweepInterval:            10 * time.Millisecond,
	}
}

// newTestTask returns a pending automated task for the given domain.
func newTestTask(t *testing.T, siteDomain string) *domain.DeletionTask {
	t.Helper()
	task, err := domain.NewDeletionTask(
		"acct-"+uuid.NewString()[:8],
		siteDomain,
		domain.MethodAutomated,
		5,
		0,
		uuid.New(),
	)
	require.NoError(t, err)
	return task
}
