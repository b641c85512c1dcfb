package driving

import (
	"context"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// MemoryService maintains durable conversation summaries
type MemoryService interface {
	// ShouldSummarize reports whether a conversation has no summary yet and
	// enough messages to be worth summarizing.
	ShouldSummarize(ctx context.Context, conversationID string) (bool, error)

	// Eligibility explains the ShouldSummarize decision
	Eligibility(ctx context.Context, conversationID string) (*domain.SummaryEligibility, error)

	// SummaryExists reports whether a conversation already has a summary
	SummaryExists(ctx context.Context, conversationID string) (bool, error)

	// GenerateSummary summarizes the conversation with the LLM and stores it.
	// Returns nil, nil when the conversation has no messages.
	GenerateSummary(ctx context.Context, conversationID, userID string) (*domain.ConversationSummary, error)

	// ScheduleSummary enqueues background summarization if the conversation is eligible.
	// Returns whether a task was enqueued.
	ScheduleSummary(ctx context.Context, conversationID, userID string) (bool, error)

	// RecordCorrection stores a user-supplied correction, creating the summary
	// or appending to it.
	RecordCorrection(ctx context.Context, conversationID, userID, content string, importance int, emotion string) (*domain.ConversationSummary, error)

	// GetRecentSummaries returns the user's most recently updated summaries
	// with importance >= minImportance. Zero values use the defaults 5 and 1.
	GetRecentSummaries(ctx context.Context, userID string, limit, minImportance int) ([]*domain.ConversationSummary, error)

	// FormatMemoryContext renders summaries as a prompt block; "" for none
	FormatMemoryContext(summaries []*domain.ConversationSummary) string

	// DeleteSummary removes one of the user's summaries
	DeleteSummary(ctx context.Context, conversationID, userID string) error
}
