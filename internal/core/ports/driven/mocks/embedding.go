package mocks

import (
	"context"
	"errors"
	"hash/fnv"
	"net/http"
	"sync"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// errUnavailable is what a failing mock embedder returns when Err is unset
var errUnavailable = domain.NewProviderError("mock", "embeddings", http.StatusServiceUnavailable, errors.New("mock provider unavailable"))

// Ensure MockEmbeddingService implements EmbeddingService
var _ driven.EmbeddingService = (*MockEmbeddingService)(nil)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Vectors are deterministic per text unless Vectors overrides them.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string

	// Vectors maps exact texts to fixed embeddings
	Vectors map[string][]float32

	// FailOnBatch makes the n-th EmbedBatch call (1-based) return Err
	FailOnBatch int
	// Err is returned by failing calls; defaults to a provider error
	Err error

	batchCalls int
	batchSizes []int
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
		Vectors:    make(map[string][]float32),
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOnBatch < 0 {
		return nil, m.err()
	}
	return m.vector(text), nil
}

func (m *MockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.FailOnBatch < 0 || (m.FailOnBatch > 0 && m.batchCalls == m.FailOnBatch) {
		return nil, m.err()
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.vector(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) err() error {
	if m.Err != nil {
		return m.Err
	}
	return errUnavailable
}

func (m *MockEmbeddingService) vector(text string) []float32 {
	if v, ok := m.Vectors[text]; ok {
		return v
	}
	return m.generateEmbedding(text)
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return embedding
}

// Helper methods for testing

// SetDimensions changes the vector length produced by generated embeddings
func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// BatchSizes returns the size of every EmbedBatch call made so far
func (m *MockEmbeddingService) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batchSizes))
	copy(out, m.batchSizes)
	return out
}
