package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driving"
	"github.com/Allerac/allerac-one-sub001/internal/metrics"
	"github.com/Allerac/allerac-one-sub001/internal/runtime"
)

// DefaultEmbedBatchSize bounds how many chunks go to the provider per call
const DefaultEmbedBatchSize = 10

// Ensure ingestionService implements DocumentService
var _ driving.DocumentService = (*ingestionService)(nil)

// IngestionConfig holds the collaborators of the ingestion pipeline.
type IngestionConfig struct {
	Documents  driven.DocumentStore
	Chunks     driven.ChunkStore
	Contents   driven.ContentStore
	Extractors driven.ExtractorRegistry
	Pipeline   driven.PostProcessorPipeline
	Queue      driven.TaskQueue
	Services   *runtime.Services
	Logger     *slog.Logger

	// BatchSize is the number of chunks embedded per provider call (default: 10)
	BatchSize int

	// PurgeOnFailure deletes chunks already persisted for a document whose
	// processing fails. By default they are kept.
	PurgeOnFailure bool
}

// ingestionService implements the DocumentService interface
type ingestionService struct {
	documents      driven.DocumentStore
	chunks         driven.ChunkStore
	contents       driven.ContentStore
	extractors     driven.ExtractorRegistry
	pipeline       driven.PostProcessorPipeline
	queue          driven.TaskQueue
	services       *runtime.Services
	logger         *slog.Logger
	batchSize      int
	purgeOnFailure bool
}

// NewIngestionService creates a new DocumentService
func NewIngestionService(cfg IngestionConfig) driving.DocumentService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &ingestionService{
		documents:      cfg.Documents,
		chunks:         cfg.Chunks,
		contents:       cfg.Contents,
		extractors:     cfg.Extractors,
		pipeline:       cfg.Pipeline,
		queue:          cfg.Queue,
		services:       cfg.Services,
		logger:         logger,
		batchSize:      batchSize,
		purgeOnFailure: cfg.PurgeOnFailure,
	}
}

// Upload creates the document record, extracts and stages its text and
// enqueues background processing. Only an unsupported format is rejected
// before the record exists; extraction errors fail the document instead.
func (s *ingestionService) Upload(ctx context.Context, file *domain.UploadFile, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	extractor, err := s.extractorFor(file)
	if err != nil {
		return "", err
	}

	doc, err := s.CreateRecord(ctx, file, userID)
	if err != nil {
		return "", err
	}
	logger := s.logger.With("document_id", doc.ID, "user_id", userID)

	text, err := extractor.Extract(ctx, file.Data)
	if err != nil {
		if err := s.fail(ctx, logger, doc.ID, fmt.Errorf("extract %s: %w", file.Filename, err)); err != nil {
			return "", err
		}
		return doc.ID, nil
	}

	if err := s.contents.Put(ctx, doc.ID, text); err != nil {
		s.abandon(ctx, logger, doc.ID, "failed to stage content", err)
		return "", fmt.Errorf("stage content: %w", err)
	}
	if err := s.queue.Enqueue(ctx, domain.NewProcessDocumentTask(userID, doc.ID)); err != nil {
		s.abandon(ctx, logger, doc.ID, "failed to enqueue processing", err)
		return "", fmt.Errorf("enqueue processing: %w", err)
	}

	logger.Info("document uploaded",
		"filename", doc.Filename,
		"mime_type", doc.MimeType,
		"size", doc.Size,
	)
	return doc.ID, nil
}

// abandon fails a record whose background processing could not be scheduled
func (s *ingestionService) abandon(ctx context.Context, logger *slog.Logger, id, msg string, cause error) {
	logger.Error(msg, "error", cause)
	if _, err := s.documents.MarkFailed(ctx, id, msg); err != nil {
		logger.Error("failed to mark document failed", "error", err)
	}
	_ = s.contents.Delete(ctx, id)
	metrics.DocumentProcessed(domain.DocumentStatusFailed)
}

// CreateRecord inserts a document in the processing state
func (s *ingestionService) CreateRecord(ctx context.Context, file *domain.UploadFile, userID string) (*domain.Document, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if file == nil || strings.TrimSpace(file.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	doc := domain.NewDocument(userID, file.Filename, file.MimeType, file.Size())
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// ExtractText returns the file's plain text
func (s *ingestionService) ExtractText(ctx context.Context, file *domain.UploadFile) (string, error) {
	extractor, err := s.extractorFor(file)
	if err != nil {
		return "", err
	}
	text, err := extractor.Extract(ctx, file.Data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", file.Filename, err)
	}
	return text, nil
}

func (s *ingestionService) extractorFor(file *domain.UploadFile) (driven.Extractor, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: file is required", domain.ErrInvalidInput)
	}
	extractor := s.extractors.Get(file.MimeType)
	if extractor == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, file.MimeType)
	}
	return extractor, nil
}

// ProcessStaged processes the text staged for a document at upload time
func (s *ingestionService) ProcessStaged(ctx context.Context, documentID string) error {
	text, err := s.contents.Get(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("no staged content for document", "document_id", documentID)
		if _, err := s.documents.MarkFailed(ctx, documentID, "staged content missing"); err != nil {
			return err
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load staged content: %w", err)
	}

	if err := s.ProcessContent(ctx, documentID, text); err != nil {
		return err
	}
	if err := s.contents.Delete(ctx, documentID); err != nil {
		s.logger.Warn("failed to delete staged content", "document_id", documentID, "error", err)
	}
	return nil
}

// ProcessContent chunks, embeds and stores the document text, then records the outcome.
func (s *ingestionService) ProcessContent(ctx context.Context, documentID, text string) error {
	logger := s.logger.With("document_id", documentID)

	doc, err := s.documents.Get(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("document deleted before processing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc.Status != domain.DocumentStatusProcessing {
		logger.Debug("document already processed", "status", doc.Status)
		return nil
	}

	count, err := s.index(ctx, logger, documentID, text)
	if err != nil {
		return s.fail(ctx, logger, documentID, err)
	}

	ok, err := s.documents.MarkCompleted(ctx, documentID, count)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if !ok {
		logger.Warn("document left processing while indexing")
		return nil
	}
	metrics.DocumentProcessed(domain.DocumentStatusCompleted)
	logger.Info("document processed", "chunks", count)
	return nil
}

// index replaces the document's chunks with freshly embedded ones
func (s *ingestionService) index(ctx context.Context, logger *slog.Logger, documentID, text string) (int, error) {
	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return 0, fmt.Errorf("%w: no embedding provider configured", domain.ErrServiceUnavailable)
	}

	// Clear any partial index left by an earlier attempt
	if err := s.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return 0, err
	}

	pieces := s.pipeline.Process(text)
	if len(pieces) == 0 {
		logger.Warn("document produced no chunks; extraction may have failed")
		return 0, nil
	}

	dimensions := s.services.Dimensions()
	for start := 0; start < len(pieces); start += s.batchSize {
		end := min(start+s.batchSize, len(pieces))
		batch := pieces[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Content
		}

		began := time.Now()
		vectors, err := embedder.EmbedBatch(ctx, texts)
		metrics.EmbedBatch(began, err)
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embed chunks %d-%d: got %d vectors: %w",
				start, end-1, len(vectors), domain.ErrProvider)
		}

		now := time.Now()
		chunks := make([]*domain.Chunk, len(batch))
		for i, p := range batch {
			if len(vectors[i]) != dimensions {
				return 0, fmt.Errorf("chunk %d has %d dimensions, want %d: %w",
					p.Position, len(vectors[i]), dimensions, domain.ErrDimensionMismatch)
			}
			chunks[i] = &domain.Chunk{
				ID:         domain.GenerateID(),
				DocumentID: documentID,
				Index:      p.Position,
				Content:    p.Content,
				Embedding:  vectors[i],
				TokenCount: domain.EstimateTokens(p.Content),
				StartChar:  p.StartOffset,
				EndChar:    p.EndOffset,
				CreatedAt:  now,
			}
		}

		if err := s.chunks.SaveBatch(ctx, chunks); err != nil {
			return 0, fmt.Errorf("save chunks %d-%d: %w", start, end-1, err)
		}
		metrics.ChunksEmbedded(len(chunks))
	}
	return len(pieces), nil
}

// fail records a processing failure on the document.
// Only an error persisting the failure itself is returned.
func (s *ingestionService) fail(ctx context.Context, logger *slog.Logger, documentID string, cause error) error {
	logger.Error("document processing failed", "error", cause)

	if s.purgeOnFailure {
		if err := s.chunks.DeleteByDocument(ctx, documentID); err != nil {
			logger.Warn("failed to purge partial chunks", "error", err)
		}
	}

	if _, err := s.documents.MarkFailed(ctx, documentID, cause.Error()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	metrics.DocumentProcessed(domain.DocumentStatusFailed)
	return nil
}

// List returns the user's documents, newest first
func (s *ingestionService) List(ctx context.Context, userID string) ([]*domain.Document, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.documents.ListByUser(ctx, userID)
}

// Get returns one of the user's documents
func (s *ingestionService) Get(ctx context.Context, id, userID string) (*domain.Document, error) {
	doc, err := s.documents.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	return domain.Authorize(doc, userID)
}

// Delete removes one of the user's documents; its chunks cascade
func (s *ingestionService) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.documents.Delete(ctx, id, userID); err != nil {
		return err
	}
	if err := s.contents.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to delete staged content", "document_id", id, "error", err)
	}
	s.logger.Info("document deleted", "document_id", id, "user_id", userID)
	return nil
}
