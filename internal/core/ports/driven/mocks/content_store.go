package mocks

import (
	"context"
	"sync"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure MockContentStore implements ContentStore
var _ driven.ContentStore = (*MockContentStore)(nil)

// MockContentStore stages text in memory
type MockContentStore struct {
	mu    sync.Mutex
	texts map[string]string
}

// NewMockContentStore creates a new MockContentStore
func NewMockContentStore() *MockContentStore {
	return &MockContentStore{texts: make(map[string]string)}
}

func (m *MockContentStore) Put(ctx context.Context, documentID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[documentID] = text
	return nil
}

func (m *MockContentStore) Get(ctx context.Context, documentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.texts[documentID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (m *MockContentStore) Delete(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.texts, documentID)
	return nil
}

// Has reports whether text is staged for a document
func (m *MockContentStore) Has(documentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.texts[documentID]
	return ok
}
