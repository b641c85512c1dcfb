package driven

import (
	"context"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// DocumentStore handles document persistence (PostgreSQL)
type DocumentStore interface {
	// Create inserts a new document record
	Create(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID. Returns domain.ErrNotFound if missing.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ListByUser retrieves a user's documents, newest first
	ListByUser(ctx context.Context, userID string) ([]*domain.Document, error)

	// MarkCompleted moves a processing document to completed with its chunk count.
	// Returns false if the document was not in processing.
	MarkCompleted(ctx context.Context, id string, chunkCount int) (bool, error)

	// MarkFailed moves a processing document to failed with an error message.
	// Returns false if the document was not in processing.
	MarkFailed(ctx context.Context, id string, message string) (bool, error)

	// FailStale fails every document still processing since before cutoff
	// and returns the affected ids.
	FailStale(ctx context.Context, cutoff time.Time, message string) ([]string, error)

	// Delete deletes a document scoped to its owner; its chunks cascade.
	// Returns domain.ErrNotFoundOrForbidden if no row matched.
	Delete(ctx context.Context, id, userID string) error

	// Ping checks the datastore is reachable
	Ping(ctx context.Context) error
}

// ChunkStore handles chunk persistence and nearest-neighbour search (PostgreSQL + pgvector)
type ChunkStore interface {
	// SaveBatch saves multiple chunks in a single transaction
	SaveBatch(ctx context.Context, chunks []*domain.Chunk) error

	// GetByDocument retrieves all chunks for a document in index order
	GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)

	// CountByDocument returns how many chunks a document has
	CountByDocument(ctx context.Context, documentID string) (int, error)

	// DeleteByDocument deletes all chunks for a document
	DeleteByDocument(ctx context.Context, documentID string) error

	// NearestChunks returns the chunks of the user's completed documents closest to
	// the query vector by cosine distance, nearest first, with distance <= maxDistance.
	NearestChunks(ctx context.Context, query []float32, userID string, maxDistance float64, limit int) ([]*domain.ChunkMatch, error)

	// Dimensions returns the dimensionality of the stored vector column (0 if unknown)
	Dimensions(ctx context.Context) (int, error)
}

// ContentStore stages extracted document text between upload and background processing
type ContentStore interface {
	Put(ctx context.Context, documentID, text string) error

	// Get returns domain.ErrNotFound if nothing is staged for the document
	Get(ctx context.Context, documentID string) (string, error)

	Delete(ctx context.Context, documentID string) error
}
