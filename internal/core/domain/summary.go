package domain

import "time"

// Importance bounds for conversation summaries
const (
	MinImportance = 1
	MaxImportance = 10
)

// ConversationSummary is the durable, append-only memory of one conversation.
// At most one exists per conversation id.
type ConversationSummary struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	Topics         []string  `json:"key_topics"`
	Importance     int       `json:"importance_score"`
	Emotion        string    `json:"emotion,omitempty"`
	MessageCount   int       `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewConversationSummary creates a summary with a fresh id and clamped importance
func NewConversationSummary(userID, conversationID, summary string, topics []string, importance int, emotion string, messageCount int) *ConversationSummary {
	now := time.Now()
	return &ConversationSummary{
		ID:             GenerateID(),
		UserID:         userID,
		ConversationID: conversationID,
		Summary:        summary,
		Topics:         topics,
		Importance:     ClampImportance(importance),
		Emotion:        emotion,
		MessageCount:   messageCount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// OwnerID implements Owned
func (s *ConversationSummary) OwnerID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}

// ClampImportance forces an importance score into [MinImportance, MaxImportance]
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}

// SummaryAppend carries the fields merged into an existing summary on conflict.
// Summary text is appended; Importance and Emotion overwrite (last write wins).
type SummaryAppend struct {
	Content      string
	Topics       []string
	Importance   int
	Emotion      string
	MessageCount int
}

// MessageRole is the author of a chat message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is one chat message owned by the chat subsystem
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// SummaryDraft is the structured output of the summarization model
type SummaryDraft struct {
	Summary    string   `json:"summary"`
	Topics     []string `json:"key_topics"`
	Importance int      `json:"importance_score"`
	Emotion    string   `json:"emotion"`
}

// SummaryEligibility explains a ShouldSummarize decision
type SummaryEligibility struct {
	ConversationID  string `json:"conversation_id"`
	ShouldSummarize bool   `json:"should_summarize"`
	SummaryExists   bool   `json:"summary_exists"`
	MessageCount    int    `json:"message_count"`
	MinMessages     int    `json:"min_messages"`
}
