package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driving"
	"github.com/Allerac/allerac-one-sub001/internal/metrics"
	"github.com/Allerac/allerac-one-sub001/internal/runtime"
)

// similarityTolerance absorbs float error from the 1 - x round trip between
// threshold and distance cutoff.
const similarityTolerance = 1e-9

const (
	contextHeader = "Relevant information from your knowledge base:"
	contextFooter = "Use the information above to answer when it is relevant to the question. " +
		"If it does not cover the question, answer from your general knowledge."
	contextSeparator = "\n\n---\n\n"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

// searchService implements the SearchService interface
type searchService struct {
	chunks   driven.ChunkStore
	services *runtime.Services
	logger   *slog.Logger
}

// NewSearchService creates a new SearchService.
// The embedding provider is read from services on every call.
func NewSearchService(chunks driven.ChunkStore, services *runtime.Services, logger *slog.Logger) driving.SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &searchService{
		chunks:   chunks,
		services: services,
		logger:   logger,
	}
}

// Search embeds the query and returns the user's nearest chunks above the threshold
func (s *searchService) Search(ctx context.Context, query, userID string, opts domain.SearchOptions) (hits []*domain.SearchHit, err error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	opts = opts.Normalize()

	start := time.Now()
	defer func() { metrics.Search(start, len(hits), err) }()

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrServiceUnavailable)
	}

	vector, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if want := s.services.Dimensions(); len(vector) != want {
		s.logger.Error("query vector has wrong dimensionality",
			"model", embedder.Model(),
			"got", len(vector),
			"want", want,
		)
		return nil, fmt.Errorf("query vector has %d dimensions, want %d: %w",
			len(vector), want, domain.ErrDimensionMismatch)
	}

	matches, err := s.chunks.NearestChunks(ctx, vector, userID, domain.DistanceCutoff(opts.Threshold()), opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("nearest chunks: %w", err)
	}

	hits = make([]*domain.SearchHit, 0, len(matches))
	for _, m := range matches {
		similarity := domain.SimilarityFromDistance(m.Distance)
		if similarity < opts.Threshold()-similarityTolerance {
			continue
		}
		hits = append(hits, &domain.SearchHit{
			ChunkID:    m.ChunkID,
			DocumentID: m.DocumentID,
			Filename:   m.Filename,
			ChunkIndex: m.Index,
			Content:    m.Content,
			Similarity: similarity,
		})
		if len(hits) == opts.Limit {
			break
		}
	}

	s.logger.Debug("search completed",
		"user_id", userID,
		"hits", len(hits),
		"threshold", opts.Threshold(),
		"took", time.Since(start),
	)
	return hits, nil
}

// GetRelevantContext renders the search hits as a prompt block
func (s *searchService) GetRelevantContext(ctx context.Context, query, userID string, opts domain.SearchOptions) (string, error) {
	hits, err := s.Search(ctx, query, userID, opts)
	if err != nil {
		return "", err
	}
	return FormatDocumentContext(hits), nil
}

// FormatDocumentContext renders hits as numbered, attributed source blocks.
// No hits yields domain.NoRelevantDocumentsMessage.
func FormatDocumentContext(hits []*domain.SearchHit) string {
	if len(hits) == 0 {
		return domain.NoRelevantDocumentsMessage
	}

	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[Source %d: %s] (Relevance: %d%%)\n%s",
			i+1, h.Filename, int(math.Round(h.Similarity*100)), h.Content)
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(blocks, contextSeparator))
	b.WriteString("\n\n")
	b.WriteString(contextFooter)
	return b.String()
}
