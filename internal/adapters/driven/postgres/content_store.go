package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore stages extracted text in the document_contents table.
// Rows cascade away with their document.
type ContentStore struct {
	db *DB
}

// NewContentStore creates a new ContentStore
func NewContentStore(db *DB) *ContentStore {
	return &ContentStore{db: db}
}

// Put stages text for a document, replacing anything staged earlier
func (s *ContentStore) Put(ctx context.Context, documentID, text string) error {
	query := `
		INSERT INTO document_contents (document_id, content)
		VALUES ($1, $2)
		ON CONFLICT (document_id) DO UPDATE SET content = EXCLUDED.content, created_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, documentID, text)
	return domain.PersistenceError("stage content", err)
}

// Get returns the staged text for a document
func (s *ContentStore) Get(ctx context.Context, documentID string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM document_contents WHERE document_id = $1`, documentID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", domain.PersistenceError("get staged content", err)
	}
	return text, nil
}

// Delete drops the staged text for a document
func (s *ContentStore) Delete(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_contents WHERE document_id = $1`, documentID)
	return domain.PersistenceError("delete staged content", err)
}
