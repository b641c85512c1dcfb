package domain

import "time"

// Search defaults
const (
	DefaultSearchLimit         = 5
	DefaultSimilarityThreshold = 0.2
	MaxSearchLimit             = 50
)

// NoRelevantDocumentsMessage is returned by GetRelevantContext when nothing clears the threshold.
const NoRelevantDocumentsMessage = "No relevant documents found in your knowledge base."

// SearchOptions configures a search request
type SearchOptions struct {
	Limit int `json:"limit"`

	// SimilarityThreshold is the minimum similarity in [0,1] a hit must reach.
	// nil means DefaultSimilarityThreshold; an explicit 0 keeps every
	// non-negative match.
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

// MinSimilarity returns a threshold value for SearchOptions.
func MinSimilarity(v float64) *float64 {
	return &v
}

// DefaultSearchOptions returns sensible defaults
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:               DefaultSearchLimit,
		SimilarityThreshold: MinSimilarity(DefaultSimilarityThreshold),
	}
}

// Normalize fills unset fields with defaults, bounds the limit and clamps the
// threshold into [0,1]. The caller's threshold pointer is never modified.
func (o SearchOptions) Normalize() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	if o.Limit > MaxSearchLimit {
		o.Limit = MaxSearchLimit
	}
	o.SimilarityThreshold = MinSimilarity(min(max(o.Threshold(), 0), 1))
	return o
}

// Threshold returns the effective similarity threshold, before clamping.
func (o SearchOptions) Threshold() float64 {
	if o.SimilarityThreshold == nil {
		return DefaultSimilarityThreshold
	}
	return *o.SimilarityThreshold
}

// DistanceCutoff converts a similarity threshold into the maximum cosine distance
func DistanceCutoff(similarityThreshold float64) float64 {
	return 1 - similarityThreshold
}

// SimilarityFromDistance converts a cosine distance into a similarity score
func SimilarityFromDistance(distance float64) float64 {
	return 1 - distance
}

// ChunkMatch is a chunk returned by nearest-neighbour search with its distance
type ChunkMatch struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Index      int
	Content    string
	Distance   float64
}

// SearchHit is one ranked search result
type SearchHit struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SearchResult represents the result of a search query
type SearchResult struct {
	Query      string        `json:"query"`
	Hits       []*SearchHit  `json:"results"`
	TotalCount int           `json:"total_count"`
	Took       time.Duration `json:"took"`
}
