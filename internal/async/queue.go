package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one unit of work with its payload.
type Job[T any] struct {
	ID          string
	Payload     T
	SubmittedAt time.Time
}

// Outcome is what a worker reports for a job. Skipped is set when the job never ran
// because the pool context was already done.
type Outcome[T, R any] struct {
	Job     Job[T]
	Result  R
	Err     error
	Skipped bool
	Elapsed time.Duration
}

// Handler processes one job under a context bounded by the process timeout.
type Handler[T, R any] func(ctx context.Context, job Job[T]) (R, error)

type Queue[T any] interface {
	Enqueue(ctx context.Context, job Job[T]) error
	Shutdown(ctx context.Context)
}
