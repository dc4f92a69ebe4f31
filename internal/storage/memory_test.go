package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	data := []byte("hello")
	require.NoError(t, m.Save(ctx, "k", data))
	data[0] = 'j' // caller mutation must not leak into the store

	got, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Close())
}
