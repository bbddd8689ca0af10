package graphquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/graph"
	"github.com/graphindex/core/internal/metrics"
	"github.com/graphindex/core/internal/types"
)

// fakeAdapter is a minimal graph.Adapter stub, enough to drive the
// query service's caching, validation, and metrics behavior without a
// live Neo4j/FalkorDB connection.
type fakeAdapter struct {
	depCalls   int
	depResult  graph.DependencyResult
	depErr     error
	traverse   graph.TraversalResult
	traverseErr error
	ctxResult  graph.ContextResult
	ctxErr     error
	delay      time.Duration
	runQueryRows []map[string]interface{}
	runQueryErr  error
}

func (f *fakeAdapter) Connect(ctx context.Context) error             { return nil }
func (f *fakeAdapter) Disconnect(ctx context.Context) error          { return nil }
func (f *fakeAdapter) HealthCheck(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeAdapter) EnsureSchema(ctx context.Context) error        { return nil }

func (f *fakeAdapter) RunQuery(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	return f.runQueryRows, f.runQueryErr
}

func (f *fakeAdapter) UpsertNode(ctx context.Context, n types.Node) (types.Node, error) {
	return n, nil
}
func (f *fakeAdapter) DeleteNode(ctx context.Context, id string) (bool, error) { return true, nil }
func (f *fakeAdapter) CreateRelationship(ctx context.Context, fromID, toID, relType string, props map[string]interface{}) (types.Relationship, error) {
	return types.Relationship{}, nil
}
func (f *fakeAdapter) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	return true, nil
}

func (f *fakeAdapter) Traverse(ctx context.Context, opts graph.TraverseOptions) (graph.TraversalResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return graph.TraversalResult{}, ctx.Err()
		}
	}
	return f.traverse, f.traverseErr
}

func (f *fakeAdapter) AnalyzeDependencies(ctx context.Context, opts graph.DependencyOptions) (graph.DependencyResult, error) {
	f.depCalls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return graph.DependencyResult{}, ctx.Err()
		}
	}
	return f.depResult, f.depErr
}

func (f *fakeAdapter) GetContext(ctx context.Context, opts graph.ContextOptions) (graph.ContextResult, error) {
	return f.ctxResult, f.ctxErr
}

func TestGetDependenciesCachesResult(t *testing.T) {
	adapter := &fakeAdapter{depResult: graph.DependencyResult{
		Direct: []types.Node{{ID: "1", Labels: []string{"Function"}}},
	}}
	svc := New(adapter, metrics.NewRing(10))

	q := DependencyQuery{EntityPath: "src/a.go", Repository: "repo", Depth: 2}

	first, err := svc.GetDependencies(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, adapter.depCalls)

	second, err := svc.GetDependencies(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, adapter.depCalls, "cached call must not hit the adapter again")
	assert.Equal(t, first.Result.Direct, second.Result.Direct)
}

func TestClearCacheForRepositoryForcesRefetch(t *testing.T) {
	adapter := &fakeAdapter{depResult: graph.DependencyResult{Direct: []types.Node{{ID: "1"}}}}
	svc := New(adapter, metrics.NewRing(10))
	q := DependencyQuery{EntityPath: "src/a.go", Repository: "repo-x", Depth: 1}

	_, err := svc.GetDependencies(context.Background(), q)
	require.NoError(t, err)

	cached, err := svc.GetDependencies(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, cached.FromCache)

	svc.ClearCacheForRepository("repo-x")

	refetched, err := svc.GetDependencies(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, refetched.FromCache)
	assert.Equal(t, 2, adapter.depCalls)
}

func TestDependencyQueryBooleanParticipatesInCacheKey(t *testing.T) {
	adapter := &fakeAdapter{depResult: graph.DependencyResult{Direct: []types.Node{{ID: "1"}}}}
	svc := New(adapter, metrics.NewRing(10))

	base := DependencyQuery{EntityPath: "src/a.go", Repository: "repo", Depth: 1}
	withTransitive := base
	withTransitive.IncludeTransitive = true

	_, err := svc.GetDependencies(context.Background(), base)
	require.NoError(t, err)
	_, err = svc.GetDependencies(context.Background(), withTransitive)
	require.NoError(t, err)

	assert.Equal(t, 2, adapter.depCalls, "differing only in IncludeTransitive must not share a cache entry")
}

func TestGetDependenciesRejectsDepthOutOfRange(t *testing.T) {
	svc := New(&fakeAdapter{}, metrics.NewRing(10))

	_, err := svc.GetDependencies(context.Background(), DependencyQuery{EntityPath: "a.go", Depth: 6})
	var verr *errs.GraphServiceValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGetDependentsAddsImpactAnalysis(t *testing.T) {
	adapter := &fakeAdapter{depResult: graph.DependencyResult{
		Direct:     []types.Node{{ID: "1"}, {ID: "2"}},
		Transitive: []types.Node{{ID: "3"}},
		ImpactScore: 0.5,
	}}
	svc := New(adapter, metrics.NewRing(10))

	out, err := svc.GetDependents(context.Background(), DependencyQuery{EntityPath: "a.go", Depth: 2})
	require.NoError(t, err)
	require.NotNil(t, out.ImpactCounts)
	assert.Equal(t, 2, out.ImpactCounts.DirectImpactCount)
	assert.Equal(t, 1, out.ImpactCounts.TransitiveImpactCount)
	assert.Equal(t, 0.5, out.ImpactCounts.ImpactScore)
}

func TestGetPathFoundAndNotFound(t *testing.T) {
	adapter := &fakeAdapter{traverse: graph.TraversalResult{Nodes: []types.Node{{ID: "from"}, {ID: "to"}}}}
	svc := New(adapter, metrics.NewRing(10))

	found, err := svc.GetPath(context.Background(), PathQuery{FromEntity: "from", ToEntity: "to", MaxHops: 3})
	require.NoError(t, err)
	assert.True(t, found.PathExists)

	adapter2 := &fakeAdapter{traverse: graph.TraversalResult{Nodes: []types.Node{{ID: "from"}}}}
	svc2 := New(adapter2, metrics.NewRing(10))
	notFound, err := svc2.GetPath(context.Background(), PathQuery{FromEntity: "from", ToEntity: "missing", MaxHops: 3})
	require.NoError(t, err)
	assert.False(t, notFound.PathExists)
}

func TestGetPathRejectsHopsOutOfRange(t *testing.T) {
	svc := New(&fakeAdapter{}, metrics.NewRing(10))
	_, err := svc.GetPath(context.Background(), PathQuery{FromEntity: "a", ToEntity: "b", MaxHops: 11})
	var verr *errs.GraphServiceValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGetArchitectureRejectsBadDetailLevel(t *testing.T) {
	svc := New(&fakeAdapter{}, metrics.NewRing(10))
	_, err := svc.GetArchitecture(context.Background(), ArchitectureQuery{Repository: "r", DetailLevel: "bogus"})
	var verr *errs.GraphServiceValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGetArchitectureDefaultsDetailLevel(t *testing.T) {
	adapter := &fakeAdapter{ctxResult: graph.ContextResult{Context: []types.Node{
		{ID: "m1", Labels: []string{string(types.LabelModule)}, Props: map[string]interface{}{"name": "m1", "repository": "r"}},
	}}}
	svc := New(adapter, metrics.NewRing(10))

	result, err := svc.GetArchitecture(context.Background(), ArchitectureQuery{Repository: "r"})
	require.NoError(t, err)
	require.Len(t, result.Root.Children, 1)
	assert.Equal(t, "m1", result.Root.Children[0].Name)
}

func TestGetArchitecturePopulatesInterModuleDependencies(t *testing.T) {
	adapter := &fakeAdapter{
		ctxResult: graph.ContextResult{Context: []types.Node{
			{ID: "m1", Labels: []string{string(types.LabelModule)}, Props: map[string]interface{}{"name": "m1", "repository": "r"}},
		}},
		runQueryRows: []map[string]interface{}{
			{"fromPath": "src/a.go", "toName": "m1"},
			{"fromPath": "src/b.go", "toName": "unrelated-module"},
		},
	}
	svc := New(adapter, metrics.NewRing(10))

	result, err := svc.GetArchitecture(context.Background(), ArchitectureQuery{Repository: "r"})
	require.NoError(t, err)
	require.Len(t, result.InterModuleDependencies, 1)
	assert.Equal(t, "src/a.go", result.InterModuleDependencies[0].FromID)
	assert.Equal(t, "m1", result.InterModuleDependencies[0].ToID)
	assert.Equal(t, "IMPORTS", result.InterModuleDependencies[0].Type)
}

func TestGetArchitectureWrapsInterModuleEdgeError(t *testing.T) {
	adapter := &fakeAdapter{
		ctxResult: graph.ContextResult{Context: []types.Node{
			{ID: "m1", Labels: []string{string(types.LabelModule)}, Props: map[string]interface{}{"name": "m1", "repository": "r"}},
		}},
		runQueryErr: errors.New("backend exploded"),
	}
	svc := New(adapter, metrics.NewRing(10))

	_, err := svc.GetArchitecture(context.Background(), ArchitectureQuery{Repository: "r"})
	var operr *errs.GraphServiceOperationError
	require.ErrorAs(t, err, &operr)
}

func TestDependencyQueryTimesOut(t *testing.T) {
	adapter := &fakeAdapter{delay: 50 * time.Millisecond}
	svc := New(adapter, metrics.NewRing(10)).WithTimeout(5 * time.Millisecond)

	_, err := svc.GetDependencies(context.Background(), DependencyQuery{EntityPath: "a.go", Depth: 1})
	var terr *errs.GraphServiceTimeoutError
	require.ErrorAs(t, err, &terr)
}

func TestDependencyQueryWrapsOperationError(t *testing.T) {
	adapter := &fakeAdapter{depErr: errors.New("backend exploded")}
	svc := New(adapter, metrics.NewRing(10))

	_, err := svc.GetDependencies(context.Background(), DependencyQuery{EntityPath: "a.go", Depth: 1})
	var operr *errs.GraphServiceOperationError
	require.ErrorAs(t, err, &operr)
}

func TestRecordsMetricsRing(t *testing.T) {
	adapter := &fakeAdapter{depResult: graph.DependencyResult{Direct: []types.Node{{ID: "1"}}}}
	ring := metrics.NewRing(10)
	svc := New(adapter, ring)

	_, err := svc.GetDependencies(context.Background(), DependencyQuery{EntityPath: "a.go", Repository: "r", Depth: 1})
	require.NoError(t, err)

	agg := metrics.Aggregate(ring, time.Now())
	assert.Equal(t, 1, agg.TotalCount)
}
