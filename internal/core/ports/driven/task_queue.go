package driven

import (
	"context"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// TaskQueue carries detached work (document indexing, summarization, sweeps)
// from the API to the worker. Delivery is at-least-once: handlers must be
// idempotent. Redis Streams when REDIS_URL is set, otherwise the tasks table.
type TaskQueue interface {
	// Enqueue stores a task; it becomes visible once ScheduledFor has passed.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout claims the next due task, waiting up to timeout seconds.
	// Returns nil, nil when nothing arrived. A claimed task is invisible to
	// other workers until it is acked, nacked or abandoned.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack marks a claimed task completed.
	Ack(ctx context.Context, taskID string) error

	// Nack records reason and reschedules the task with exponential backoff,
	// or fails it once MaxAttempts is reached.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask returns a task by id, or domain.ErrNotFound.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// PurgeTasks deletes completed and failed tasks last updated more than
	// olderThanSeconds ago and returns how many were removed.
	PurgeTasks(ctx context.Context, olderThanSeconds int) (int, error)

	// Stats reports queue depth for readiness checks.
	Stats(ctx context.Context) (*QueueStats, error)

	Ping(ctx context.Context) error
	Close() error
}

// QueueStats counts tasks by status
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`

	// OldestPendingAge is the age of the oldest pending task in seconds
	OldestPendingAge int64 `json:"oldest_pending_age"`
}
