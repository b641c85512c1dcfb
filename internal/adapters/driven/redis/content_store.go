package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ContentStore = (*ContentStore)(nil)

const contentPrefix = "allerac:content:"

// DefaultContentTTL keeps staged text around well past the stale-document timeout
const DefaultContentTTL = 24 * time.Hour

// ContentStore stages extracted document text in Redis with a TTL, so text
// for documents that never get processed expires on its own.
type ContentStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContentStore creates a ContentStore. A non-positive ttl uses DefaultContentTTL.
func NewContentStore(client *redis.Client, ttl time.Duration) *ContentStore {
	if ttl <= 0 {
		ttl = DefaultContentTTL
	}
	return &ContentStore{client: client, ttl: ttl}
}

// Put stages text for a document
func (s *ContentStore) Put(ctx context.Context, documentID, text string) error {
	return domain.PersistenceError("stage content", s.client.Set(ctx, contentPrefix+documentID, text, s.ttl).Err())
}

// Get returns the staged text, or domain.ErrNotFound
func (s *ContentStore) Get(ctx context.Context, documentID string) (string, error) {
	text, err := s.client.Get(ctx, contentPrefix+documentID).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", domain.PersistenceError("get staged content", err)
	}
	return text, nil
}

// Delete drops the staged text
func (s *ContentStore) Delete(ctx context.Context, documentID string) error {
	return domain.PersistenceError("delete staged content", s.client.Del(ctx, contentPrefix+documentID).Err())
}
