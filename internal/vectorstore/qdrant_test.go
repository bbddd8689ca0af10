package vectorstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/types"
)

func TestDocumentPayloadCarriesEveryMetadataField(t *testing.T) {
	indexedAt := time.Now().Truncate(time.Second)
	modifiedAt := indexedAt.Add(-time.Hour)

	doc := types.DocumentInput{
		Content: "package main",
		Metadata: types.DocumentMetadata{
			FilePath:       "main.go",
			Repository:     "repo-a",
			ChunkIndex:     2,
			TotalChunks:    5,
			ChunkStartLine: 10,
			ChunkEndLine:   20,
			FileExtension:  ".go",
			FileSizeBytes:  1024,
			ContentHash:    "abc",
			IndexedAt:      indexedAt,
			FileModifiedAt: modifiedAt,
		},
	}

	payload := documentPayload(doc)
	assert.Equal(t, "package main", payload["content"])
	assert.Equal(t, "main.go", payload["file_path"])
	assert.Equal(t, "repo-a", payload["repository"])
	assert.Equal(t, 2, payload["chunk_index"])
	assert.Equal(t, 5, payload["total_chunks"])
	assert.Equal(t, 10, payload["chunk_start_line"])
	assert.Equal(t, 20, payload["chunk_end_line"])
	assert.Equal(t, ".go", payload["file_extension"])
	assert.Equal(t, int64(1024), payload["file_size_bytes"])
	assert.Equal(t, "abc", payload["content_hash"])
	assert.Equal(t, indexedAt.Unix(), payload["indexed_at"])
	assert.Equal(t, modifiedAt.Unix(), payload["file_modified_at"])
}

func TestBuildFilterEmitsOneConditionPerEntry(t *testing.T) {
	filter := map[string]interface{}{
		"repository": "repo-a",
		"deleted":    false,
		"chunk_index": 3,
	}

	f := buildFilter(filter)
	require.Len(t, f.Must, 3)

	seen := map[string]bool{}
	for _, cond := range f.Must {
		field := cond.GetField()
		require.NotNil(t, field)
		seen[field.Key] = true
	}
	assert.True(t, seen["repository"])
	assert.True(t, seen["deleted"])
	assert.True(t, seen["chunk_index"])
}

func TestBuildFilterIgnoresUnsupportedValueTypes(t *testing.T) {
	f := buildFilter(map[string]interface{}{"weird": []string{"a", "b"}})
	assert.Empty(t, f.Must)
}

func TestQdrantStore_Integration(t *testing.T) {
	qdrantURL := os.Getenv("QDRANT_URL")
	if qdrantURL == "" {
		t.Skip("QDRANT_URL not set, skipping integration test")
	}

	store, err := NewQdrantStore(qdrantURL, 6334, false)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	collection := "codegraph_test_collection"

	require.NoError(t, store.EnsureCollection(ctx, collection, 4))

	doc := types.DocumentInput{
		ID:        "doc-1",
		Content:   "hello world",
		Embedding: []float32{0.1, 0.2, 0.3, 0.4},
		Metadata: types.DocumentMetadata{
			FilePath:   "a.go",
			Repository: "repo-a",
		},
	}
	require.NoError(t, store.Upsert(ctx, collection, []types.DocumentInput{doc}))

	results, err := store.Search(ctx, collection, doc.Embedding, 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	deleted, err := store.DeleteByFilter(ctx, collection, map[string]interface{}{"repository": "repo-a"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, 1)
}
