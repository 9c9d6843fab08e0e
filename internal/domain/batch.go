package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for BatchJob
var (
	ErrEmptyBatchJobID     = errors.New("batch ID cannot be empty")
	ErrInvalidParallelism  = errors.New("batch parallelism must be between 1 and 10")
	ErrBatchWithoutMembers = errors.New("batch must contain at least one task")
)

// BatchJob records one submission of accounts for deletion. Member tasks
// carry the batch ID; the batch itself only holds submission metadata.
type BatchJob struct {
	ID                   uuid.UUID   `json:"id"`
	SubmittedAt          time.Time   `json:"submitted_at"`
	RequestedParallelism int         `json:"requested_parallelism"`
	TaskIDs              []uuid.UUID `json:"task_ids"`
}

// NewBatchJob creates a batch for the given parallelism. Task IDs are
// attached by the service as tasks are created.
func NewBatchJob(parallelism int) (*BatchJob, error) {
	batch := &BatchJob{
		ID:                   uuid.New(),
		SubmittedAt:          time.Now().UTC(),
		RequestedParallelism: parallelism,
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}

	return batch, nil
}

// Validate checks the batch's field invariants.
func (b *BatchJob) Validate() error {
	if b.ID == uuid.Nil {
		return ErrEmptyBatchJobID
	}
	if b.RequestedParallelism < 1 || b.RequestedParallelism > 10 {
		return ErrInvalidParallelism
	}
	return nil
}
