package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure MockSummaryStore implements SummaryStore
var _ driven.SummaryStore = (*MockSummaryStore)(nil)

// MockSummaryStore is a mock implementation of SummaryStore that enforces
// one summary per conversation like the unique constraint does.
type MockSummaryStore struct {
	mu             sync.Mutex
	byConversation map[string]*domain.ConversationSummary

	// BeforeCreate runs before the uniqueness check; tests use it to simulate
	// a concurrent writer winning the race.
	BeforeCreate func(s *domain.ConversationSummary)

	createCalls int
	appendCalls int
}

// NewMockSummaryStore creates a new MockSummaryStore
func NewMockSummaryStore() *MockSummaryStore {
	return &MockSummaryStore{
		byConversation: make(map[string]*domain.ConversationSummary),
	}
}

func (m *MockSummaryStore) Create(ctx context.Context, s *domain.ConversationSummary) error {
	if m.BeforeCreate != nil {
		m.BeforeCreate(s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if _, ok := m.byConversation[s.ConversationID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *s
	cp.Topics = append([]string(nil), s.Topics...)
	m.byConversation[s.ConversationID] = &cp
	return nil
}

func (m *MockSummaryStore) Append(ctx context.Context, conversationID, userID string, upd domain.SummaryAppend) (*domain.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	s, ok := m.byConversation[conversationID]
	if !ok || s.UserID != userID {
		return nil, domain.ErrNotFoundOrForbidden
	}
	s.Summary = s.Summary + "\n\n" + upd.Content
	s.Topics = mergeTopics(s.Topics, upd.Topics)
	s.Importance = domain.ClampImportance(upd.Importance)
	s.Emotion = upd.Emotion
	s.MessageCount += upd.MessageCount
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (m *MockSummaryStore) GetByConversation(ctx context.Context, conversationID string) (*domain.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byConversation[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSummaryStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byConversation[conversationID]
	return ok, nil
}

func (m *MockSummaryStore) ListRecent(ctx context.Context, userID string, limit, minImportance int) ([]*domain.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ConversationSummary
	for _, s := range m.byConversation {
		if s.UserID == userID && s.Importance >= minImportance {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSummaryStore) Delete(ctx context.Context, conversationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byConversation[conversationID]
	if !ok || s.UserID != userID {
		return domain.ErrNotFoundOrForbidden
	}
	delete(m.byConversation, conversationID)
	return nil
}

// Helper methods for testing

// Put stores a summary as-is
func (m *MockSummaryStore) Put(s *domain.ConversationSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.byConversation[s.ConversationID] = &cp
}

// Count returns the number of rows for a conversation (0 or 1)
func (m *MockSummaryStore) Count(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byConversation[conversationID]; ok {
		return 1
	}
	return 0
}

// Calls returns how many Create and Append calls were made
func (m *MockSummaryStore) Calls() (creates, appends int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls, m.appendCalls
}

func mergeTopics(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range extra {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
