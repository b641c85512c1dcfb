package driving

import (
	"context"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// SearchService performs semantic search over a user's indexed documents
type SearchService interface {
	// Search returns the user's chunks most similar to query, best first,
	// all with similarity >= opts.SimilarityThreshold.
	Search(ctx context.Context, query, userID string, opts domain.SearchOptions) ([]*domain.SearchHit, error)

	// GetRelevantContext formats search hits as a prompt block for the chat model.
	// Returns domain.NoRelevantDocumentsMessage when nothing matches.
	GetRelevantContext(ctx context.Context, query, userID string, opts domain.SearchOptions) (string, error)
}
