package graphingest

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/graph"
	"github.com/graphindex/core/internal/types"
)

// fakeAdapter is an in-memory stand-in for graph.Adapter, just enough
// of MERGE-by-identity-key semantics for graphingest's tests: nodes
// with the same labels[0]+name+filePath reuse the same id.
type fakeAdapter struct {
	mu    sync.Mutex
	nodes map[string]types.Node
	rels  []types.Relationship
	next  int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{nodes: map[string]types.Node{}}
}

func (f *fakeAdapter) Connect(ctx context.Context) error               { return nil }
func (f *fakeAdapter) Disconnect(ctx context.Context) error            { return nil }
func (f *fakeAdapter) HealthCheck(ctx context.Context) (bool, error)   { return true, nil }
func (f *fakeAdapter) EnsureSchema(ctx context.Context) error          { return nil }
func (f *fakeAdapter) RunQuery(ctx context.Context, q string, params map[string]interface{}) ([]map[string]interface{}, error) {
	return nil, nil
}

func identityKey(n types.Node) string {
	label := ""
	if len(n.Labels) > 0 {
		label = n.Labels[0]
	}
	return label + "|" + toStr(n.Props["name"]) + "|" + toStr(n.Props["path"]) + "|" + toStr(n.Props["filePath"])
}

func toStr(v interface{}) string {
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (f *fakeAdapter) UpsertNode(ctx context.Context, n types.Node) (types.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := identityKey(n)
	if existing, ok := f.nodes[key]; ok {
		n.ID = existing.ID
		f.nodes[key] = n
		return n, nil
	}
	f.next++
	n.ID = strconv.Itoa(f.next)
	f.nodes[key] = n
	return n, nil
}

func (f *fakeAdapter) DeleteNode(ctx context.Context, id string) (bool, error) { return true, nil }

func (f *fakeAdapter) CreateRelationship(ctx context.Context, fromID, toID, relType string, props map[string]interface{}) (types.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel := types.Relationship{Type: relType, FromID: fromID, ToID: toID, Props: props}
	f.rels = append(f.rels, rel)
	return rel, nil
}

func (f *fakeAdapter) DeleteRelationship(ctx context.Context, id string) (bool, error) { return true, nil }

func (f *fakeAdapter) Traverse(ctx context.Context, opts graph.TraverseOptions) (graph.TraversalResult, error) {
	return graph.TraversalResult{}, nil
}

func (f *fakeAdapter) AnalyzeDependencies(ctx context.Context, opts graph.DependencyOptions) (graph.DependencyResult, error) {
	return graph.DependencyResult{}, nil
}

func (f *fakeAdapter) GetContext(ctx context.Context, opts graph.ContextOptions) (graph.ContextResult, error) {
	return graph.ContextResult{}, nil
}

func (f *fakeAdapter) hasLabel(label string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.nodes {
		if len(n.Labels) > 0 && n.Labels[0] == label {
			count++
		}
	}
	return count
}

func TestIngestPythonRepo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(`
import os

class Greeter:
    def __init__(self):
        pass

    def greet(self):
        return os.getenv("NAME")
`), 0o644))

	adapter := newFakeAdapter()
	ing := New(adapter, nil)

	stats, err := ing.Ingest(context.Background(), "myrepo", dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesProcessed)
	assert.GreaterOrEqual(t, stats.ClassesUpserted, 1)
	assert.GreaterOrEqual(t, stats.ModulesUpserted, 1)
	assert.Empty(t, stats.Errors)

	assert.Equal(t, 1, adapter.hasLabel(string(types.LabelRepository)))
	assert.Equal(t, 1, adapter.hasLabel(string(types.LabelFile)))
}

func TestIngestSkipsUnrecognisedExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi"), 0o644))

	adapter := newFakeAdapter()
	ing := New(adapter, nil)

	stats, err := ing.Ingest(context.Background(), "myrepo", dir)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesProcessed)
}
