package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/types"
)

func TestNewTokenStoreCreatesEmptyFileWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := NewTokenStore(path)
	require.NoError(t, err)
	assert.Empty(t, store.All())
	assert.FileExists(t, path)
}

func TestTokenStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := NewTokenStore(path)
	require.NoError(t, err)

	tok := types.StoredToken{TokenHash: "abc123", Metadata: types.TokenMetadata{Name: "n"}}
	require.NoError(t, store.Put(tok))

	reopened, err := NewTokenStore(path)
	require.NoError(t, err)
	got, ok := reopened.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, "n", got.Metadata.Name)
}

func TestUpdateUsageIncrementsCountAndTimestamp(t *testing.T) {
	store, err := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	tok := types.StoredToken{TokenHash: "h1", Metadata: types.TokenMetadata{Name: "n"}}
	require.NoError(t, store.Put(tok))

	now := time.Now()
	require.NoError(t, store.UpdateUsage("h1", now))
	got, ok := store.Get("h1")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Metadata.UseCount)
	require.NotNil(t, got.Metadata.LastUsedAt)
	assert.WithinDuration(t, now, *got.Metadata.LastUsedAt, time.Second)
}

func TestUpdateUsageUnknownHashErrors(t *testing.T) {
	store, err := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	err = store.UpdateUsage("missing", time.Now())
	assert.Error(t, err)
}

func TestDeleteRemovesFromCacheAndDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := NewTokenStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Put(types.StoredToken{TokenHash: "h1"}))
	require.NoError(t, store.Delete("h1"))
	_, ok := store.Get("h1")
	assert.False(t, ok)

	reopened, err := NewTokenStore(path)
	require.NoError(t, err)
	_, ok = reopened.Get("h1")
	assert.False(t, ok)
}
