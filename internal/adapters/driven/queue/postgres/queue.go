package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure Queue implements TaskQueue
var _ driven.TaskQueue = (*Queue)(nil)

// DefaultPollInterval is how often DequeueWithTimeout re-checks an empty queue
const DefaultPollInterval = 500 * time.Millisecond

const taskColumns = `id, type, user_id, payload, status, priority, attempts, max_attempts,
	error, created_at, updated_at, started_at, completed_at, scheduled_for`

const insertTaskSQL = `
	INSERT INTO tasks (
		id, type, user_id, payload, status, priority,
		attempts, max_attempts, error, created_at, updated_at, scheduled_for
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Queue implements TaskQueue on the tasks table with SELECT ... FOR UPDATE SKIP LOCKED.
// Used when Redis is not configured.
type Queue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewQueue creates a new PostgreSQL-backed task queue.
// The tasks table comes from the embedded schema.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, pollInterval: DefaultPollInterval}
}

// WithPollInterval overrides how often an empty queue is re-checked
func (q *Queue) WithPollInterval(d time.Duration) *Queue {
	if d > 0 {
		q.pollInterval = d
	}
	return q
}

// Enqueue adds a task to the queue
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	args, err := insertArgs(task)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, insertTaskSQL, args...); err != nil {
		return domain.PersistenceError("insert task", err)
	}
	return nil
}

func insertArgs(task *domain.Task) ([]any, error) {
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for task %s: %w", task.ID, err)
	}
	return []any{
		task.ID,
		string(task.Type),
		task.UserID,
		payload,
		string(task.Status),
		task.Priority,
		task.Attempts,
		task.MaxAttempts,
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
		task.ScheduledFor,
	}, nil
}

// DequeueWithTimeout polls for a ready task for up to timeout seconds
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for {
		task, err := q.claim(ctx)
		if err != nil || task != nil {
			return task, err
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		if wait > q.pollInterval {
			wait = q.pollInterval
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// claim selects and marks one task in a single statement. SKIP LOCKED keeps
// concurrent workers from claiming the same row.
func (q *Queue) claim(ctx context.Context) (*domain.Task, error) {
	query := `
		UPDATE tasks
		SET status = $1, started_at = NOW(), updated_at = NOW(), attempts = attempts + 1
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $2 AND scheduled_for <= NOW()
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	task, err := scanTask(q.db.QueryRowContext(ctx, query, domain.TaskStatusProcessing, domain.TaskStatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.PersistenceError("claim task", err)
	}
	return task, nil
}

// Ack marks a task as completed
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	query := `
		UPDATE tasks
		SET status = $1, completed_at = NOW(), updated_at = NOW(), error = NULL
		WHERE id = $2
	`
	return q.update(ctx, "ack task", query, domain.TaskStatusCompleted, taskID)
}

// Nack records the failure and either reschedules the task with backoff or
// marks it failed once its attempts are used up
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if !task.CanRetry() {
		query := `UPDATE tasks SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`
		return q.update(ctx, "fail task", query, domain.TaskStatusFailed, reason, taskID)
	}

	query := `
		UPDATE tasks
		SET status = $1, error = $2, updated_at = NOW(), scheduled_for = $3
		WHERE id = $4
	`
	next := time.Now().Add(domain.RetryBackoff(task.Attempts))
	return q.update(ctx, "reschedule task", query, domain.TaskStatusPending, reason, next, taskID)
}

func (q *Queue) update(ctx context.Context, op, query string, args ...any) error {
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.PersistenceError(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.PersistenceError(op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetTask retrieves a task by ID
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := scanTask(q.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.PersistenceError("get task", err)
	}
	return task, nil
}

// PurgeTasks removes completed and failed tasks older than olderThanSeconds
func (q *Queue) PurgeTasks(ctx context.Context, olderThanSeconds int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)

	result, err := q.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE status IN ($1, $2) AND updated_at < $3`,
		domain.TaskStatusCompleted, domain.TaskStatusFailed, cutoff,
	)
	if err != nil {
		return 0, domain.PersistenceError("purge tasks", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, domain.PersistenceError("purge tasks", err)
	}
	return int(n), nil
}

// Stats returns queue statistics
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(EXTRACT(EPOCH FROM (NOW() - MIN(created_at) FILTER (WHERE status = 'pending')))::bigint, 0)
		FROM tasks
	`

	stats := &driven.QueueStats{}
	err := q.db.QueryRowContext(ctx, query).Scan(
		&stats.PendingCount,
		&stats.ProcessingCount,
		&stats.CompletedCount,
		&stats.FailedCount,
		&stats.OldestPendingAge,
	)
	if err != nil {
		return nil, domain.PersistenceError("queue stats", err)
	}
	return stats, nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op; the connection pool is owned by the caller
func (q *Queue) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task                   domain.Task
		taskType, status       string
		payload                []byte
		errText                sql.NullString
		startedAt, completedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&taskType,
		&task.UserID,
		&payload,
		&status,
		&task.Priority,
		&task.Attempts,
		&task.MaxAttempts,
		&errText,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
		&task.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	task.Type = domain.TaskType(taskType)
	task.Status = domain.TaskStatus(status)
	task.Error = errText.String
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}
