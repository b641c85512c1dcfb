package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

func TestContentStore_PutGetDelete(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewContentStore(client, 0)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc-1", "hello world"))

	text, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	require.NoError(t, store.Delete(ctx, "doc-1"))
	_, err = store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContentStore_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewContentStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc-1", "text"))
	assert.Equal(t, time.Minute, mr.TTL(contentPrefix+"doc-1"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContentStore_DefaultTTL(t *testing.T) {
	client, _ := setupTestRedis(t)

	assert.Equal(t, DefaultContentTTL, NewContentStore(client, -1).ttl)
}

func TestContentStore_Unavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewContentStore(client, 0)
	mr.Close()

	err := store.Put(context.Background(), "doc-1", "text")
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
