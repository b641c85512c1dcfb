package driven

import (
	"context"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// SummaryStore handles conversation summary persistence (PostgreSQL).
// The store enforces at most one summary per conversation id.
type SummaryStore interface {
	// Create inserts a new summary. Returns domain.ErrAlreadyExists if the
	// conversation already has one.
	Create(ctx context.Context, summary *domain.ConversationSummary) error

	// Append atomically appends content to an existing summary owned by userID,
	// separated by a blank line, and overwrites importance and emotion.
	// Returns domain.ErrNotFoundOrForbidden if no summary owned by userID exists.
	Append(ctx context.Context, conversationID, userID string, upd domain.SummaryAppend) (*domain.ConversationSummary, error)

	// GetByConversation retrieves the summary for a conversation.
	// Returns domain.ErrNotFound if missing.
	GetByConversation(ctx context.Context, conversationID string) (*domain.ConversationSummary, error)

	// Exists reports whether a conversation has a summary
	Exists(ctx context.Context, conversationID string) (bool, error)

	// ListRecent returns the user's summaries with importance >= minImportance,
	// most recently updated first.
	ListRecent(ctx context.Context, userID string, limit, minImportance int) ([]*domain.ConversationSummary, error)

	// Delete removes a summary scoped to its owner.
	// Returns domain.ErrNotFoundOrForbidden if no row matched.
	Delete(ctx context.Context, conversationID, userID string) error
}

// ConversationReader reads chat messages owned by the chat subsystem
type ConversationReader interface {
	// CountMessages returns the number of messages in a conversation
	CountMessages(ctx context.Context, conversationID string) (int, error)

	// ListMessages returns a conversation's messages in chronological order,
	// scoped to the owning user.
	ListMessages(ctx context.Context, conversationID, userID string) ([]*domain.Message, error)
}
