package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q, err := NewQueue(context.Background(), client, "test-worker")
	require.NoError(t, err)
	return q, client
}

func TestNewQueue_RequiresClient(t *testing.T) {
	_, err := NewQueue(context.Background(), nil, "w")
	assert.Error(t, err)
}

func TestNewQueue_GroupAlreadyExists(t *testing.T) {
	_, client := newTestQueue(t)

	_, err := NewQueue(context.Background(), client, "second-worker")
	assert.NoError(t, err)
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessDocumentTask("user-1", "doc-1")
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "doc-1", got.DocumentID())
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)
	assert.Equal(t, 1, got.Attempts)

	require.NoError(t, q.Ack(ctx, got.ID))

	stored, err := q.GetTask(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	n, err := client.XLen(ctx, taskStream).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, client.Exists(ctx, msgKey(got.ID)).Val())
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	got, err := q.DequeueWithTimeout(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_NackSchedulesRetry(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewSummarizeConversationTask("user-1", "conv-1")
	require.NoError(t, q.Enqueue(ctx, task))
	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, q.Nack(ctx, got.ID, "provider down"))

	stored, err := q.GetTask(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)
	assert.Equal(t, "provider down", stored.Error)
	assert.True(t, stored.ScheduledFor.After(time.Now()))

	_, err = client.ZScore(ctx, scheduledTasks, got.ID).Result()
	assert.NoError(t, err)
}

func TestQueue_NackExhaustedFails(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewSweepStaleDocumentsTask()
	require.NoError(t, q.Enqueue(ctx, task))
	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, q.Nack(ctx, got.ID, "boom"))

	stored, err := q.GetTask(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "boom", stored.Error)

	_, err = client.ZScore(ctx, scheduledTasks, got.ID).Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestQueue_DelayedTaskPromotedWhenDue(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessDocumentTask("user-1", "doc-1")
	task.ScheduledFor = time.Now().Add(time.Hour)
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "task scheduled in the future must not be delivered")

	// make it due
	require.NoError(t, client.ZAdd(ctx, scheduledTasks, redis.Z{Score: 0, Member: task.ID}).Err())

	got, err = q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
}

func TestQueue_GetTaskMissing(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.GetTask(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueue_AckMissing(t *testing.T) {
	q, _ := newTestQueue(t)

	err := q.Ack(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueue_EnqueueNil(t *testing.T) {
	q, _ := newTestQueue(t)

	err := q.Enqueue(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueue_PurgeAndStats(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	done := domain.NewProcessDocumentTask("user-1", "doc-1")
	require.NoError(t, q.Enqueue(ctx, done))
	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NoError(t, q.Ack(ctx, got.ID))

	waiting := domain.NewProcessDocumentTask("user-1", "doc-2")
	require.NoError(t, q.Enqueue(ctx, waiting))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingCount)
	assert.Equal(t, int64(1), stats.CompletedCount)

	time.Sleep(10 * time.Millisecond)
	purged, err := q.PurgeTasks(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = q.GetTask(ctx, done.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = q.GetTask(ctx, waiting.ID)
	assert.NoError(t, err)
}
