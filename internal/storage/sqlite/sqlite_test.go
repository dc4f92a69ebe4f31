package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luckydraw/internal/storage"
)

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	store, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()

	t.Run("Load missing key returns ErrNotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "lucky-draw:nobody")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Save then Load round trips", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "lucky-draw:a", []byte(`{"categories":[]}`)))

		data, err := store.Load(ctx, "lucky-draw:a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"categories":[]}`, string(data))
	})

	t.Run("Save overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "lucky-draw:b", []byte(`{"v":1}`)))
		require.NoError(t, store.Save(ctx, "lucky-draw:b", []byte(`{"v":2}`)))

		data, err := store.Load(ctx, "lucky-draw:b")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(data))
	})

	t.Run("Delete removes and tolerates missing keys", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "lucky-draw:c", []byte(`{}`)))
		require.NoError(t, store.Delete(ctx, "lucky-draw:c"))
		require.NoError(t, store.Delete(ctx, "lucky-draw:c"))

		_, err := store.Load(ctx, "lucky-draw:c")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Data survives reopen", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "lucky-draw:d", []byte(`{"x":true}`)))
		require.NoError(t, store.Close())

		reopened, err := New(dbPath)
		require.NoError(t, err)
		store = reopened

		data, err := store.Load(ctx, "lucky-draw:d")
		require.NoError(t, err)
		assert.JSONEq(t, `{"x":true}`, string(data))
	})
}
