package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure MockConversationReader implements ConversationReader
var _ driven.ConversationReader = (*MockConversationReader)(nil)

// MockConversationReader holds conversations in memory
type MockConversationReader struct {
	mu       sync.RWMutex
	owners   map[string]string
	messages map[string][]*domain.Message
}

// NewMockConversationReader creates a new MockConversationReader
func NewMockConversationReader() *MockConversationReader {
	return &MockConversationReader{
		owners:   make(map[string]string),
		messages: make(map[string][]*domain.Message),
	}
}

func (m *MockConversationReader) CountMessages(ctx context.Context, conversationID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[conversationID]), nil
}

func (m *MockConversationReader) ListMessages(ctx context.Context, conversationID, userID string) ([]*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if owner, ok := m.owners[conversationID]; ok && owner != userID {
		return nil, nil
	}
	out := make([]*domain.Message, len(m.messages[conversationID]))
	copy(out, m.messages[conversationID])
	return out, nil
}

// Helper methods for testing

// AddMessages appends alternating user/assistant messages to a conversation owned by userID
func (m *MockConversationReader) AddMessages(conversationID, userID string, contents ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[conversationID] = userID
	base := time.Now().Add(-time.Hour)
	for _, c := range contents {
		n := len(m.messages[conversationID])
		role := domain.MessageRoleUser
		if n%2 == 1 {
			role = domain.MessageRoleAssistant
		}
		m.messages[conversationID] = append(m.messages[conversationID], &domain.Message{
			ID:             domain.GenerateID(),
			ConversationID: conversationID,
			Role:           role,
			Content:        c,
			CreatedAt:      base.Add(time.Duration(n) * time.Second),
		})
	}
}
