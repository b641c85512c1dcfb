package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

func TestInsertArgs(t *testing.T) {
	task := domain.NewProcessDocumentTask("user-1", "doc-1")

	args, err := insertArgs(task)

	assert.NoError(t, err)
	assert.Len(t, args, 12)
	assert.Equal(t, "process_document", args[1])
	assert.Equal(t, "user-1", args[2])
	assert.JSONEq(t, `{"document_id":"doc-1"}`, string(args[3].([]byte)))
	assert.Equal(t, "pending", args[4])
}

func TestWithPollInterval(t *testing.T) {
	q := NewQueue(nil)
	assert.Equal(t, DefaultPollInterval, q.pollInterval)

	q.WithPollInterval(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, q.pollInterval)

	q.WithPollInterval(0)
	assert.Equal(t, 250*time.Millisecond, q.pollInterval, "non-positive keeps the current interval")
}
