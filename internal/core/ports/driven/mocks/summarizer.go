package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure MockSummarizer implements Summarizer
var _ driven.Summarizer = (*MockSummarizer)(nil)

// MockSummarizer returns a canned draft, or the result of SummarizeFn when set
type MockSummarizer struct {
	mu          sync.Mutex
	SummarizeFn func(messages []*domain.Message) (*domain.SummaryDraft, error)
	calls       int
}

// NewMockSummarizer creates a new MockSummarizer
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

func (m *MockSummarizer) Summarize(ctx context.Context, messages []*domain.Message) (*domain.SummaryDraft, error) {
	m.mu.Lock()
	m.calls++
	fn := m.SummarizeFn
	m.mu.Unlock()

	if fn != nil {
		return fn(messages)
	}
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		parts = append(parts, msg.Content)
	}
	return &domain.SummaryDraft{
		Summary:    "Discussed: " + strings.Join(parts, "; "),
		Topics:     []string{"general"},
		Importance: 5,
		Emotion:    "neutral",
	}, nil
}

func (m *MockSummarizer) Model() string {
	return "mock-summary-model"
}

// Calls returns how many times Summarize was called
func (m *MockSummarizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
