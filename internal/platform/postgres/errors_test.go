package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/wzin/datawipe/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantIs   error
		wantSame bool
	}{
		{
			name:   "no rows becomes not found",
			err:    sql.ErrNoRows,
			wantIs: store.ErrNotFound,
		},
		{
			name:   "wrapped no rows becomes not found",
			err:    fmt.Errorf("query failed: %w", sql.ErrNoRows),
			wantIs: store.ErrNotFound,
		},
		{
			name:   "generic unique violation",
			err:    &pgconn.PgError{Code: uniqueViolationCode},
			wantIs: store.ErrDuplicate,
		},
		{
			name:   "token unique violation",
			err:    &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraintTaskToken},
			wantIs: store.ErrDuplicateToken,
		},
		{
			name:   "message unique violation",
			err:    &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraintConfirmationMsgID},
			wantIs: store.ErrDuplicateMessage,
		},
		{
			name:   "foreign key violation",
			err:    &pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "deletion_tasks_batch_id_fkey"},
			wantIs: store.ErrInvalidEntity,
		},
		{
			name:   "check violation",
			err:    &pgconn.PgError{Code: checkViolationCode, ConstraintName: "deletion_tasks_attempts_check"},
			wantIs: store.ErrInvalidEntity,
		},
		{
			name:     "unmapped errors pass through",
			err:      errors.New("connection reset"),
			wantSame: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			mapped := MapError(tc.err)
			if tc.wantSame {
				assert.Equal(t, tc.err, mapped)
				return
			}
			assert.ErrorIs(t, mapped, tc.wantIs)
			// The original error stays wrapped for debugging.
			assert.Contains(t, mapped.Error(), tc.err.Error())
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, MapError(nil))
}

func TestDuplicateTokenIsAlsoDuplicate(t *testing.T) {
	t.Parallel()

	mapped := MapError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: constraintTaskToken})
	assert.True(t, store.IsDuplicateError(mapped))
	assert.ErrorIs(t, mapped, store.ErrDuplicateToken)
	assert.NotErrorIs(t, mapped, store.ErrDuplicateMessage)
}
