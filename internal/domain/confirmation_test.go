package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfirmationEvent(t *testing.T) {
	t.Parallel()

	t.Run("valid exact match", func(t *testing.T) {
		t.Parallel()

		taskID := uuid.New()
		event, err := NewConfirmationEvent(taskID, "<msg-1@example.com>", MatchExact, 1.0, true)
		require.NoError(t, err)
		assert.Equal(t, taskID, event.TaskID)
		assert.Equal(t, MatchExact, event.Kind)
		assert.True(t, event.Applied)
		assert.False(t, event.MatchedAt.IsZero())
	})

	t.Run("sub-threshold heuristic match is storable unapplied", func(t *testing.T) {
		t.Parallel()

		event, err := NewConfirmationEvent(uuid.New(), "<msg-2@example.com>", MatchHeuristic, 0.6, false)
		require.NoError(t, err)
		assert.False(t, event.Applied)
		assert.Equal(t, 0.6, event.Confidence)
	})

	t.Run("rejects missing task ID", func(t *testing.T) {
		t.Parallel()

		_, err := NewConfirmationEvent(uuid.Nil, "<msg@example.com>", MatchExact, 1.0, true)
		assert.ErrorIs(t, err, ErrEmptyConfirmationTask)
	})

	t.Run("rejects empty message ID", func(t *testing.T) {
		t.Parallel()

		_, err := NewConfirmationEvent(uuid.New(), "", MatchExact, 1.0, true)
		assert.ErrorIs(t, err, ErrEmptyMessageID)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		t.Parallel()

		for _, confidence := range []float64{-0.1, 1.1} {
			_, err := NewConfirmationEvent(uuid.New(), "<msg@example.com>", MatchHeuristic, confidence, false)
			assert.ErrorIs(t, err, ErrInvalidConfidence, "confidence %v", confidence)
		}
	})
}

func TestNewAuditEntry(t *testing.T) {
	t.Parallel()

	t.Run("valid entry", func(t *testing.T) {
		t.Parallel()

		taskID := uuid.New()
		entry, err := NewAuditEntry(&taskID, AuditActionTaskCreated, "operator", map[string]interface{}{
			"site_domain": "example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, AuditActionTaskCreated, entry.Action)
		require.NotNil(t, entry.TaskID)
		assert.Equal(t, taskID, *entry.TaskID)
	})

	t.Run("nil task ID for engine-wide actions", func(t *testing.T) {
		t.Parallel()

		entry, err := NewAuditEntry(nil, AuditActionDispatchPaused, "operator", nil)
		require.NoError(t, err)
		assert.Nil(t, entry.TaskID)
	})

	t.Run("rejects empty action", func(t *testing.T) {
		t.Parallel()

		_, err := NewAuditEntry(nil, "", "operator", nil)
		assert.ErrorIs(t, err, ErrEmptyAuditAction)
	})
}
