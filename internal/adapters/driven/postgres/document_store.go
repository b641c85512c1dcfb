package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

const documentColumns = `id, user_id, filename, mime_type, size, status, error, chunk_count, created_at, updated_at`

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts a new document record
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		string(doc.Status),
		NullString(doc.Error),
		doc.ChunkCount,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return domain.PersistenceError("create document", err)
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.PersistenceError("get document", err)
	}
	return doc, nil
}

// ListByUser retrieves a user's documents, newest first
func (s *DocumentStore) ListByUser(ctx context.Context, userID string) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE ` + ownedBy("", 1) + `
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, domain.PersistenceError("list documents", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, domain.PersistenceError("scan document", err)
		}
		docs = append(docs, doc)
	}
	return docs, domain.PersistenceError("list documents", rows.Err())
}

// MarkCompleted moves a processing document to completed.
// The status guard in the WHERE clause makes the transition one-way.
func (s *DocumentStore) MarkCompleted(ctx context.Context, id string, chunkCount int) (bool, error) {
	query := `
		UPDATE documents
		SET status = 'completed', chunk_count = $2, error = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return s.transition(ctx, "mark document completed", query, id, chunkCount)
}

// MarkFailed moves a processing document to failed
func (s *DocumentStore) MarkFailed(ctx context.Context, id string, message string) (bool, error) {
	query := `
		UPDATE documents
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return s.transition(ctx, "mark document failed", query, id, message)
}

func (s *DocumentStore) transition(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, domain.PersistenceError(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, domain.PersistenceError(op, err)
	}
	return n > 0, nil
}

// FailStale fails documents that have been processing since before cutoff
func (s *DocumentStore) FailStale(ctx context.Context, cutoff time.Time, message string) ([]string, error) {
	query := `
		UPDATE documents
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
		RETURNING id
	`

	rows, err := s.db.QueryContext(ctx, query, cutoff, message)
	if err != nil {
		return nil, domain.PersistenceError("fail stale documents", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.PersistenceError("scan document id", err)
		}
		ids = append(ids, id)
	}
	return ids, domain.PersistenceError("fail stale documents", rows.Err())
}

// Delete removes a document owned by userID. Chunks and staged content cascade.
func (s *DocumentStore) Delete(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND `+ownedBy("", 2), id, userID)
	if err != nil {
		return domain.PersistenceError("delete document", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.PersistenceError("delete document", err)
	}
	if n == 0 {
		return domain.ErrNotFoundOrForbidden
	}
	return nil
}

// Ping checks the database is reachable
func (s *DocumentStore) Ping(ctx context.Context) error {
	return domain.PersistenceError("ping", s.db.Ping(ctx))
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc     domain.Document
		status  string
		errText sql.NullString
	)
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&status,
		&errText,
		&doc.ChunkCount,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	doc.Error = errText.String
	return &doc, nil
}

// stringArray wraps topics for TEXT[] columns, never sending NULL
func stringArray(values []string) any {
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}
