package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Services holds the AI providers shared by the core services.
// Providers may be swapped at runtime; readers always see a consistent pair.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// dimensions is the system-wide vector size every embedding must have
	dimensions int

	embeddingService driven.EmbeddingService
	summarizer       driven.Summarizer
}

// Capabilities reports which providers are configured
type Capabilities struct {
	EmbeddingAvailable  bool   `json:"embedding_available"`
	EmbeddingModel      string `json:"embedding_model,omitempty"`
	Dimensions          int    `json:"dimensions"`
	SummarizerAvailable bool   `json:"summarizer_available"`
	SummaryModel        string `json:"summary_model,omitempty"`
}

// NewServices creates a registry for vectors of the given size
func NewServices(dimensions int) *Services {
	return &Services{dimensions: dimensions}
}

// Dimensions returns the configured vector size
func (s *Services) Dimensions() int {
	return s.dimensions
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// Summarizer returns the current summarizer (may be nil)
func (s *Services) Summarizer() driven.Summarizer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summarizer
}

// SetEmbeddingService replaces the embedding service, closing the old one.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
}

// SetSummarizer replaces the summarizer
func (s *Services) SetSummarizer(svc driven.Summarizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summarizer = svc
}

// ValidateAndSetEmbedding checks the provider is reachable and produces
// vectors of the configured size before installing it.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if svc.Dimensions() != s.dimensions {
		_ = svc.Close()
		return fmt.Errorf("model %s produces %d dimensions, configured %d: %w",
			svc.Model(), svc.Dimensions(), s.dimensions, domain.ErrDimensionMismatch)
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// Capabilities returns a snapshot of the configured providers
func (s *Services) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Capabilities{Dimensions: s.dimensions}
	if s.embeddingService != nil {
		c.EmbeddingAvailable = true
		c.EmbeddingModel = s.embeddingService.Model()
	}
	if s.summarizer != nil {
		c.SummarizerAvailable = true
		c.SummaryModel = s.summarizer.Model()
	}
	return c
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	s.summarizer = nil
	return nil
}
