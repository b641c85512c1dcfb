package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SummaryStore = (*SummaryStore)(nil)

const summaryColumns = `id, user_id, conversation_id, summary, key_topics, importance_score, emotion, message_count, created_at, updated_at`

// SummaryStore implements driven.SummaryStore using PostgreSQL.
// The UNIQUE constraint on conversation_id is what keeps one summary per conversation.
type SummaryStore struct {
	db *DB
}

// NewSummaryStore creates a new SummaryStore
func NewSummaryStore(db *DB) *SummaryStore {
	return &SummaryStore{db: db}
}

// Create inserts a summary, or returns domain.ErrAlreadyExists on conflict
func (s *SummaryStore) Create(ctx context.Context, summary *domain.ConversationSummary) error {
	query := `
		INSERT INTO conversation_summaries (` + summaryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		summary.ID,
		summary.UserID,
		summary.ConversationID,
		summary.Summary,
		stringArray(summary.Topics),
		domain.ClampImportance(summary.Importance),
		NullString(summary.Emotion),
		summary.MessageCount,
		summary.CreatedAt,
		summary.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return domain.PersistenceError("create summary", err)
}

// Append concatenates content onto the owner's summary in one statement so
// concurrent appends never lose text. New topics are added in order, skipping
// ones already present.
func (s *SummaryStore) Append(ctx context.Context, conversationID, userID string, upd domain.SummaryAppend) (*domain.ConversationSummary, error) {
	query := `
		UPDATE conversation_summaries
		SET summary = summary || E'\n\n' || $3,
			key_topics = key_topics || ARRAY(
				SELECT t FROM (
					SELECT DISTINCT ON (t) t, ord
					FROM unnest($4::text[]) WITH ORDINALITY AS u(t, ord)
					WHERE t <> '' AND NOT (t = ANY(conversation_summaries.key_topics))
					ORDER BY t, ord
				) fresh
				ORDER BY ord
			),
			importance_score = $5,
			emotion = $6,
			message_count = message_count + $7,
			updated_at = NOW()
		WHERE conversation_id = $1 AND ` + ownedBy("", 2) + `
		RETURNING ` + summaryColumns

	summary, err := scanSummary(s.db.QueryRowContext(ctx, query,
		conversationID,
		userID,
		upd.Content,
		stringArray(upd.Topics),
		domain.ClampImportance(upd.Importance),
		NullString(upd.Emotion),
		upd.MessageCount,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, domain.PersistenceError("append summary", err)
	}
	return summary, nil
}

// GetByConversation retrieves the summary for a conversation
func (s *SummaryStore) GetByConversation(ctx context.Context, conversationID string) (*domain.ConversationSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM conversation_summaries WHERE conversation_id = $1`

	summary, err := scanSummary(s.db.QueryRowContext(ctx, query, conversationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.PersistenceError("get summary", err)
	}
	return summary, nil
}

// Exists reports whether a conversation has a summary
func (s *SummaryStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversation_summaries WHERE conversation_id = $1)`,
		conversationID,
	).Scan(&exists)
	if err != nil {
		return false, domain.PersistenceError("summary exists", err)
	}
	return exists, nil
}

// ListRecent returns the user's most recently updated summaries
func (s *SummaryStore) ListRecent(ctx context.Context, userID string, limit, minImportance int) ([]*domain.ConversationSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM conversation_summaries
		WHERE ` + ownedBy("", 1) + ` AND importance_score >= $2
		ORDER BY updated_at DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, minImportance, limit)
	if err != nil {
		return nil, domain.PersistenceError("list summaries", err)
	}
	defer rows.Close()

	var summaries []*domain.ConversationSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, domain.PersistenceError("scan summary", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("list summaries", err)
	}
	return summaries, nil
}

// Delete removes the owner's summary
func (s *SummaryStore) Delete(ctx context.Context, conversationID, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_summaries WHERE conversation_id = $1 AND `+ownedBy("", 2),
		conversationID, userID,
	)
	if err != nil {
		return domain.PersistenceError("delete summary", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.PersistenceError("delete summary", err)
	}
	if n == 0 {
		return domain.ErrNotFoundOrForbidden
	}
	return nil
}

func scanSummary(row rowScanner) (*domain.ConversationSummary, error) {
	var (
		summary domain.ConversationSummary
		topics  pq.StringArray
		emotion sql.NullString
	)
	err := row.Scan(
		&summary.ID,
		&summary.UserID,
		&summary.ConversationID,
		&summary.Summary,
		&topics,
		&summary.Importance,
		&emotion,
		&summary.MessageCount,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	summary.Topics = []string(topics)
	summary.Emotion = emotion.String
	return &summary, nil
}
