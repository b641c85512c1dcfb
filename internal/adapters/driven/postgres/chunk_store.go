package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore using PostgreSQL with the pgvector extension
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// SaveBatch saves multiple chunks in a transaction
func (s *ChunkStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding, token_count, start_char, end_char, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (document_id, chunk_index) DO UPDATE SET
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				token_count = EXCLUDED.token_count,
				start_char = EXCLUDED.start_char,
				end_char = EXCLUDED.end_char
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			if len(chunk.Embedding) == 0 {
				return fmt.Errorf("chunk %d of document %s has no embedding: %w", chunk.Index, chunk.DocumentID, domain.ErrInvalidInput)
			}
			_, err = stmt.ExecContext(ctx,
				chunk.ID,
				chunk.DocumentID,
				chunk.Index,
				chunk.Content,
				pgvector.NewVector(chunk.Embedding),
				chunk.TokenCount,
				chunk.StartChar,
				chunk.EndChar,
				chunk.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	return domain.PersistenceError("save chunks", err)
}

// GetByDocument retrieves all chunks for a document in index order
func (s *ChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, content, embedding, token_count, start_char, end_char, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, domain.PersistenceError("get chunks", err)
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var (
			chunk     domain.Chunk
			embedding pgvector.Vector
		)
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Index,
			&chunk.Content,
			&embedding,
			&chunk.TokenCount,
			&chunk.StartChar,
			&chunk.EndChar,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, domain.PersistenceError("scan chunk", err)
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, &chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("get chunks", err)
	}
	return chunks, nil
}

// CountByDocument returns how many chunks a document has
func (s *ChunkStore) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&n)
	if err != nil {
		return 0, domain.PersistenceError("count chunks", err)
	}
	return n, nil
}

// DeleteByDocument deletes all chunks for a document
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return domain.PersistenceError("delete chunks", err)
}

// HNSW scan settings applied to every nearest-neighbour query. The owner and
// status filters run after the index scan, so a fixed ef_search would return
// fewer rows than limit whenever other users' chunks fill the candidate list.
// Iterative scans (pgvector 0.8+) keep walking the graph until limit rows pass
// the filters or hnswMaxScanTuples is reached.
const (
	hnswEfSearch      = 100
	hnswMaxScanTuples = 20000
)

// nearestChunkSettings returns the transaction-local settings for NearestChunks
func nearestChunkSettings() []string {
	return []string{
		"SET LOCAL hnsw.iterative_scan = relaxed_order",
		fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", hnswEfSearch),
		fmt.Sprintf("SET LOCAL hnsw.max_scan_tuples = %d", hnswMaxScanTuples),
	}
}

// nearestChunksQuery re-sorts the relaxed index output; relaxed_order may
// yield slightly out-of-order rows.
var nearestChunksQuery = `
	WITH candidates AS MATERIALIZED (
		SELECT c.id, c.document_id, d.filename, c.chunk_index, c.content, c.embedding <=> $1 AS distance
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE ` + ownedBy("d", 2) + `
		  AND d.status = 'completed'
		  AND c.embedding <=> $1 <= $3
		ORDER BY c.embedding <=> $1 ASC
		LIMIT $4
	)
	SELECT id, document_id, filename, chunk_index, content, distance
	FROM candidates
	ORDER BY distance ASC
`

// NearestChunks runs the cosine-distance search. Only chunks of completed
// documents owned by userID are candidates.
func (s *ChunkStore) NearestChunks(ctx context.Context, query []float32, userID string, maxDistance float64, limit int) ([]*domain.ChunkMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	var matches []*domain.ChunkMatch
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range nearestChunkSettings() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}

		rows, err := tx.QueryContext(ctx, nearestChunksQuery, pgvector.NewVector(query), userID, maxDistance, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m domain.ChunkMatch
			if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Filename, &m.Index, &m.Content, &m.Distance); err != nil {
				return fmt.Errorf("scan chunk match: %w", err)
			}
			matches = append(matches, &m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, domain.PersistenceError("nearest chunks", err)
	}
	return matches, nil
}

// Dimensions reads the declared size of the embedding column.
// pgvector stores the dimension count directly in atttypmod.
func (s *ChunkStore) Dimensions(ctx context.Context) (int, error) {
	query := `
		SELECT a.atttypmod
		FROM pg_attribute a
		WHERE a.attrelid = 'document_chunks'::regclass
		  AND a.attname = 'embedding'
		  AND NOT a.attisdropped
	`

	var typmod int
	err := s.db.QueryRowContext(ctx, query).Scan(&typmod)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.PersistenceError("read vector dimensions", err)
	}
	if typmod < 0 {
		return 0, nil
	}
	return typmod, nil
}
