package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeProcessDocument chunks, embeds and indexes an uploaded document
	TaskTypeProcessDocument TaskType = "process_document"
	// TaskTypeSummarizeConversation condenses a conversation into its durable summary
	TaskTypeSummarizeConversation TaskType = "summarize_conversation"
	// TaskTypeSweepStaleDocuments fails documents stuck in processing
	TaskTypeSweepStaleDocuments TaskType = "sweep_stale_documents"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Payload keys
const (
	PayloadDocumentID     = "document_id"
	PayloadConversationID = "conversation_id"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// UserID is the user on whose behalf the task runs (empty for system tasks)
	UserID string `json:"user_id"`

	// Payload contains task-specific data
	// For process_document: {"document_id": "..."}
	// For summarize_conversation: {"conversation_id": "..."}
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, userID string, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		UserID:       userID,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewProcessDocumentTask creates a task to index an uploaded document
func NewProcessDocumentTask(userID, documentID string) *Task {
	return NewTask(TaskTypeProcessDocument, userID, map[string]string{
		PayloadDocumentID: documentID,
	})
}

// NewSummarizeConversationTask creates a task to summarize a conversation
func NewSummarizeConversationTask(userID, conversationID string) *Task {
	return NewTask(TaskTypeSummarizeConversation, userID, map[string]string{
		PayloadConversationID: conversationID,
	})
}

// NewSweepStaleDocumentsTask creates a task to fail documents stuck in processing
func NewSweepStaleDocumentsTask() *Task {
	t := NewTask(TaskTypeSweepStaleDocuments, "", nil)
	t.MaxAttempts = 1
	return t
}

// DocumentID extracts the document_id from the payload
func (t *Task) DocumentID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload[PayloadDocumentID]
}

// ConversationID extracts the conversation_id from the payload
func (t *Task) ConversationID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload[PayloadConversationID]
}

// CanRetry reports whether another attempt is allowed after the current one.
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady reports whether the task is pending and due.
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !t.ScheduledFor.After(time.Now())
}

func (t *Task) transition(status TaskStatus, errMsg string) time.Time {
	now := time.Now()
	t.Status = status
	t.Error = errMsg
	t.UpdatedAt = now
	return now
}

// MarkProcessing records a claim; each claim counts as one attempt.
func (t *Task) MarkProcessing() {
	now := t.transition(TaskStatusProcessing, t.Error)
	t.StartedAt = &now
	t.Attempts++
}

func (t *Task) MarkCompleted() {
	now := t.transition(TaskStatusCompleted, "")
	t.CompletedAt = &now
}

func (t *Task) MarkFailed(reason string) {
	t.transition(TaskStatusFailed, reason)
}

// Retry puts the task back to pending, due after RetryBackoff(Attempts).
func (t *Task) Retry(reason string) {
	now := t.transition(TaskStatusPending, reason)
	t.ScheduledFor = now.Add(RetryBackoff(t.Attempts))
}

const maxRetryBackoff = 5 * time.Minute

// RetryBackoff doubles from one second per attempt, capped at five minutes.
func RetryBackoff(attempts int) time.Duration {
	if attempts >= 9 { // 2^9s already exceeds the cap
		return maxRetryBackoff
	}
	return min(time.Duration(1<<attempts)*time.Second, maxRetryBackoff)
}
