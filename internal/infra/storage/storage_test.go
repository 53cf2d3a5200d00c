package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

func exerciseStore(t *testing.T, store session.ImageStore) {
	t.Helper()
	ctx := context.Background()
	key := uuid.NewString() + "/" + uuid.NewString()

	require.NoError(t, store.Put(ctx, key, "image/png", []byte("leaf")))

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("leaf"), data)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, session.ErrImageNotFound)

	assert.NoError(t, store.Delete(ctx, key))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", "image/png", buf))
	buf[0] = 'x'

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestMinioStore(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}

	ctx := context.Background()
	store, err := New(ctx, endpoint, "us-east-1", "leafscan-test",
		os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), false)
	require.NoError(t, err)
	require.NoError(t, store.Check(ctx))

	exerciseStore(t, store)
}
