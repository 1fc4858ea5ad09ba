package save

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBackendContract(t *testing.T, backend Backend) {
	ctx := context.Background()

	_, err := backend.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, backend.Delete(ctx, "missing"), ErrNotFound)

	require.NoError(t, backend.Save(ctx, "alpha", []byte("one"), Metadata{"v": "1"}))
	require.NoError(t, backend.Save(ctx, "beta", []byte("two"), nil))

	data, err := backend.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	// Overwrite.
	require.NoError(t, backend.Save(ctx, "alpha", []byte("uno"), nil))
	data, err = backend.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), data)

	keys, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, keys)

	require.NoError(t, backend.Delete(ctx, "alpha"))
	_, err = backend.Load(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreContract(t *testing.T) {
	runBackendContract(t, NewMemoryStore())
}

func TestFileStoreContract(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	runBackendContract(t, store)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "slot1", []byte("payload"), nil))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	data, err := reopened.Load(ctx, "slot1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestKeyValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	assert.Error(t, store.Save(ctx, "", nil, nil))
	assert.Error(t, store.Save(ctx, "../escape", nil, nil))
	assert.Error(t, store.Save(ctx, "nested/key", nil, nil))
}

func TestMemoryStoreCopiesPayloads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	payload := []byte("abc")
	require.NoError(t, store.Save(ctx, "k", payload, nil))
	payload[0] = 'z'

	data, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data, "store must not alias caller buffers")
}
