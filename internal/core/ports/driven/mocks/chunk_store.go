package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure MockChunkStore implements ChunkStore
var _ driven.ChunkStore = (*MockChunkStore)(nil)

// MockChunkStore is an in-memory ChunkStore that computes cosine distance
// the way pgvector's <=> operator does.
type MockChunkStore struct {
	mu         sync.RWMutex
	byDocument map[string][]*domain.Chunk
	docs       *MockDocumentStore
	dimensions int

	// FailOnSave makes the n-th SaveBatch call (1-based) return Err
	FailOnSave int
	Err        error

	saveCalls int
}

// NewMockChunkStore creates a MockChunkStore joined to docs for ownership and
// status filtering. Deleting a document from docs cascades to its chunks.
func NewMockChunkStore(docs *MockDocumentStore) *MockChunkStore {
	m := &MockChunkStore{
		byDocument: make(map[string][]*domain.Chunk),
		docs:       docs,
	}
	if docs != nil {
		docs.mu.Lock()
		docs.chunks = m
		docs.mu.Unlock()
	}
	return m
}

func (m *MockChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.FailOnSave > 0 && m.saveCalls == m.FailOnSave {
		if m.Err != nil {
			return m.Err
		}
		return domain.PersistenceError("save chunks", context.DeadlineExceeded)
	}
	for _, c := range chunks {
		cp := *c
		m.byDocument[c.DocumentID] = append(m.byDocument[c.DocumentID], &cp)
	}
	return nil
}

func (m *MockChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Chunk, 0, len(m.byDocument[documentID]))
	for _, c := range m.byDocument[documentID] {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *MockChunkStore) CountByDocument(ctx context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byDocument[documentID]), nil
}

func (m *MockChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byDocument, documentID)
	return nil
}

func (m *MockChunkStore) NearestChunks(ctx context.Context, query []float32, userID string, maxDistance float64, limit int) ([]*domain.ChunkMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []*domain.ChunkMatch
	for docID, chunks := range m.byDocument {
		if m.docs == nil {
			continue
		}
		doc, ok := m.docs.lookup(docID)
		if !ok || doc.UserID != userID || doc.Status != domain.DocumentStatusCompleted {
			continue
		}
		for _, c := range chunks {
			d := CosineDistance(query, c.Embedding)
			if d > maxDistance {
				continue
			}
			matches = append(matches, &domain.ChunkMatch{
				ChunkID:    c.ID,
				DocumentID: docID,
				Filename:   doc.Filename,
				Index:      c.Index,
				Content:    c.Content,
				Distance:   d,
			})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MockChunkStore) Dimensions(ctx context.Context) (int, error) {
	return m.dimensions, nil
}

// SetDimensions sets the value reported by Dimensions
func (m *MockChunkStore) SetDimensions(dim int) {
	m.dimensions = dim
}

// CosineDistance returns 1 - cos(a, b); 1 when either vector is zero
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
