package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

func testBlobStore(t *testing.T, store types.BlobStore) {
	t.Helper()
	ctx := context.Background()

	assert.True(t, store.IsAvailable())

	_, err := store.Get(ctx, "missing")
	assert.True(t, types.IsNotFound(err), "got %v", err)

	require.NoError(t, store.Set(ctx, "k", []byte(`[{"barcode":"1"}]`)))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `[{"barcode":"1"}]`, string(got))

	require.NoError(t, store.Set(ctx, "k", []byte(`[]`)))
	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"), "deleting a missing key is not an error")
	_, err = store.Get(ctx, "k")
	assert.True(t, types.IsNotFound(err))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	assert.False(t, store.IsAvailable())
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, types.ErrClosed)
	assert.ErrorIs(t, store.Set(ctx, "k", nil), types.ErrClosed)
}

func TestMemoryBlobStore(t *testing.T) {
	store, err := NewMemoryBlobStore(config.ForTesting().Local.Memory, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", store.Name())

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	_, _ = store.Get(ctx, "a")
	_, _ = store.Get(ctx, "b")
	assert.Equal(t, 1, store.EntryCount())
	assert.InDelta(t, 0.5, store.HitRatio(), 1e-9)
	require.NoError(t, store.Delete(ctx, "a"))

	testBlobStore(t, store)
}

func TestBadgerBlobStore_InMemory(t *testing.T) {
	store, err := NewBadgerBlobStore(config.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, "badger", store.Name())

	testBlobStore(t, store)
}

func TestBadgerBlobStore_PersistsAcrossReopen(t *testing.T) {
	cfg := config.BadgerConfig{Path: t.TempDir(), SyncWrites: true}
	ctx := context.Background()

	store, err := NewBadgerBlobStore(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "barcode_cache:user-1", []byte(`[]`)))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerBlobStore(cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "barcode_cache:user-1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestDisabledBlobStore(t *testing.T) {
	ctx := context.Background()
	store := NewDisabledBlobStore()

	assert.False(t, store.IsAvailable())
	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	_, err := store.Get(ctx, "k")
	assert.True(t, types.IsNotFound(err))
}
