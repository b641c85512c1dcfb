package postgres

import (
	"context"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConversationReader = (*ConversationReader)(nil)

// ConversationReader reads chat history written by the chat service
type ConversationReader struct {
	db *DB
}

// NewConversationReader creates a new ConversationReader
func NewConversationReader(db *DB) *ConversationReader {
	return &ConversationReader{db: db}
}

// CountMessages returns the number of messages in a conversation
func (r *ConversationReader) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&n)
	if err != nil {
		return 0, domain.PersistenceError("count messages", err)
	}
	return n, nil
}

// ListMessages returns the messages of a conversation owned by userID, oldest first.
// A conversation owned by someone else yields no messages.
func (r *ConversationReader) ListMessages(ctx context.Context, conversationID, userID string) ([]*domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.role, m.content, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = $1 AND ` + ownedBy("c", 2) + `
		ORDER BY m.created_at ASC, m.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID, userID)
	if err != nil {
		return nil, domain.PersistenceError("list messages", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var (
			msg  domain.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, domain.PersistenceError("scan message", err)
		}
		msg.Role = domain.MessageRole(role)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("list messages", err)
	}
	return messages, nil
}
