package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/manifesto-ai/bridge/pkg/adapters/sqlite"
	"github.com/manifesto-ai/bridge/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunStoreContract(t, func(t *testing.T) ports.Store {
		return newStore(t)
	})
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.db")

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	store.SetManyData(map[string]any{"data.name": "John", "data.age": 30})
	store.SetState("state.step", "review")
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "John", reopened.GetData("data.name"))
	assert.EqualValues(t, 30, reopened.GetData("data.age"))
	assert.Equal(t, "review", reopened.GetState("state.step"))
}

func TestSQLiteStore_Subtrees(t *testing.T) {
	store := newStore(t)

	store.SetData("data.address", map[string]any{"city": "Lisbon", "zip": "1000"})
	assert.Equal(t, "Lisbon", store.GetData("data.address.city"))
	assert.Equal(t, map[string]any{"city": "Lisbon", "zip": "1000"}, store.GetData("data.address"),
		"a parent path reads back as the nested map of its leaves")

	store.SetData("data.address", map[string]any{"city": "Porto"})
	assert.Nil(t, store.GetData("data.address.zip"), "writing a map replaces the subtree")
	assert.Equal(t, map[string]any{"data.address.city": "Porto"}, store.CaptureData())

	store.SetData("data.address", "unknown")
	store.SetData("data.address.city", "Faro")
	assert.Equal(t, map[string]any{"data.address.city": "Faro"}, store.CaptureData(),
		"writing a leaf removes a scalar stored at its parent")
}

func TestSQLiteStore_Clear(t *testing.T) {
	store := newStore(t)
	store.SetData("data.name", "John")
	store.SetState("state.step", "review")

	require.NoError(t, store.Clear(context.Background()))
	assert.Empty(t, store.CaptureData())
	assert.Empty(t, store.CaptureState())
}
