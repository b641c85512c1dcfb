package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure MockDocumentStore implements DocumentStore
var _ driven.DocumentStore = (*MockDocumentStore)(nil)

// MockDocumentStore is a mock implementation of DocumentStore for testing
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
	chunks    *MockChunkStore
	deletes   int

	// Err, when set, is returned by every call
	Err error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.Document),
	}
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[doc.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MockDocumentStore) ListByUser(ctx context.Context, userID string) ([]*domain.Document, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Document
	for _, d := range m.documents {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MockDocumentStore) MarkCompleted(ctx context.Context, id string, chunkCount int) (bool, error) {
	return m.transition(id, domain.DocumentStatusCompleted, "", chunkCount)
}

func (m *MockDocumentStore) MarkFailed(ctx context.Context, id string, message string) (bool, error) {
	return m.transition(id, domain.DocumentStatusFailed, message, -1)
}

func (m *MockDocumentStore) transition(id string, to domain.DocumentStatus, message string, chunkCount int) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok || !doc.Status.CanTransition(to) {
		return false, nil
	}
	doc.Status = to
	doc.Error = message
	if chunkCount >= 0 {
		doc.ChunkCount = chunkCount
	}
	doc.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockDocumentStore) FailStale(ctx context.Context, cutoff time.Time, message string) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, d := range m.documents {
		if d.Status == domain.DocumentStatusProcessing && d.CreatedAt.Before(cutoff) {
			d.Status = domain.DocumentStatusFailed
			d.Error = message
			d.UpdatedAt = time.Now()
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id, userID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	m.deletes++
	doc, ok := m.documents[id]
	if !ok || doc.UserID != userID {
		m.mu.Unlock()
		return domain.ErrNotFoundOrForbidden
	}
	delete(m.documents, id)
	chunks := m.chunks
	m.mu.Unlock()

	if chunks != nil {
		return chunks.DeleteByDocument(ctx, id)
	}
	return nil
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	return m.Err
}

// Helper methods for testing

// Put stores a document as-is, bypassing Create
func (m *MockDocumentStore) Put(doc *domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.documents[doc.ID] = &cp
}

// Count returns the number of stored documents
func (m *MockDocumentStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.documents)
}

func (m *MockDocumentStore) lookup(id string) (domain.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.Document{}, false
	}
	return *doc, true
}

// Deletes returns how many Delete calls reached the store
func (m *MockDocumentStore) Deletes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deletes
}
