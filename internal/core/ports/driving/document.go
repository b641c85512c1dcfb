package driving

import (
	"context"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// DocumentService ingests user documents and manages their lifecycle
type DocumentService interface {
	// Upload creates the record, extracts its text and schedules background
	// indexing. Only domain.ErrUnsupportedFormat is returned before the record
	// exists; an unreadable file leaves a failed record. The outcome is visible via Get.
	Upload(ctx context.Context, file *domain.UploadFile, userID string) (string, error)

	// CreateRecord inserts a document in the processing state
	CreateRecord(ctx context.Context, file *domain.UploadFile, userID string) (*domain.Document, error)

	// ExtractText returns the file's plain text, or domain.ErrUnsupportedFormat
	ExtractText(ctx context.Context, file *domain.UploadFile) (string, error)

	// ProcessContent chunks, embeds and persists text for a processing document,
	// then marks it completed or failed. Indexing failures are recorded on the
	// document, not returned; only persistence errors are returned.
	ProcessContent(ctx context.Context, documentID, text string) error

	// ProcessStaged runs ProcessContent on the text staged at upload time
	ProcessStaged(ctx context.Context, documentID string) error

	// List returns the user's documents, newest first
	List(ctx context.Context, userID string) ([]*domain.Document, error)

	// Get returns one of the user's documents
	Get(ctx context.Context, id, userID string) (*domain.Document, error)

	// Delete removes one of the user's documents and all its chunks
	Delete(ctx context.Context, id, userID string) error
}

// DocumentSweeper fails documents stuck in processing
type DocumentSweeper interface {
	// Sweep fails every document processing for longer than the configured
	// timeout and returns how many were failed.
	Sweep(ctx context.Context) (int, error)
}
