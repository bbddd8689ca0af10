package migrate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportNodesDryRunSynthesizesDistinctIDs(t *testing.T) {
	target := newMemAdapter()
	importer := NewImporter(target, true)

	nodes := []ExportedNode{
		{SourceID: "src-1", Labels: []string{"File"}, Props: map[string]interface{}{"path": "a.go"}},
		{SourceID: "src-2", Labels: []string{"File"}, Props: map[string]interface{}{"path": "b.go"}},
	}

	mapping, result := importer.ImportNodes(context.Background(), nodes)
	require.Empty(t, result.Errors)
	assert.Equal(t, 2, result.NodesImported)
	assert.Empty(t, target.nodes, "dry run must never call UpsertNode")

	id1, ok := mapping["src-1"]
	require.True(t, ok)
	id2, ok := mapping["src-2"]
	require.True(t, ok)

	assert.NotEqual(t, "src-1", id1, "dry-run ids must not be the source id")
	assert.NotEqual(t, id1, id2, "each dry-run node gets a distinct synthetic id")
	_, err := uuid.Parse(id1)
	assert.NoError(t, err, "dry-run id must be a valid uuid")
}

func TestImportNodesSkipsUnlabeled(t *testing.T) {
	target := newMemAdapter()
	importer := NewImporter(target, false)

	nodes := []ExportedNode{{SourceID: "src-1", Labels: nil}}
	mapping, result := importer.ImportNodes(context.Background(), nodes)

	assert.Empty(t, mapping)
	assert.Equal(t, 0, result.NodesImported)
	require.Len(t, result.Errors, 1)
}

func TestImportRelationshipsSkipsUnmappedEndpoints(t *testing.T) {
	target := newMemAdapter()
	importer := NewImporter(target, false)

	rels := []ExportedRelationship{
		{SourceID: "rel-1", StartSourceID: "missing", EndSourceID: "also-missing", Type: "CALLS"},
	}
	result := importer.ImportRelationships(context.Background(), rels, map[string]string{})

	assert.Equal(t, 0, result.RelationshipsImported)
	require.Len(t, result.Errors, 1)
}
