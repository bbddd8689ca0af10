// Package graphquery implements the graph query service (C3, §4.4):
// the user-facing dependency/path/architecture query surface over a
// graph.Adapter, with result caching, per-query timeouts, and metrics
// recording.
package graphquery

import (
	"context"
	"fmt"
	"time"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/graph"
	"github.com/graphindex/core/internal/metrics"
	"github.com/graphindex/core/internal/types"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 60 * time.Second
	defaultTimeout   = 5 * time.Second
)

// Service sits over a graph.Adapter and answers the C3 queries.
type Service struct {
	adapter graph.Adapter
	cache   *resultCache
	ring    *metrics.Ring
	logger  *metrics.EventLogger
	timeout time.Duration
}

// New builds a Service with the default cache size/TTL and per-query
// timeout.
func New(adapter graph.Adapter, ring *metrics.Ring) *Service {
	return &Service{
		adapter: adapter,
		cache:   newResultCache(defaultCacheSize, defaultCacheTTL),
		ring:    ring,
		timeout: defaultTimeout,
	}
}

// WithTimeout overrides the per-query timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// WithEventLogger attaches the JSONL event stream every query call
// also reports to, alongside the in-memory ring.
func (s *Service) WithEventLogger(l *metrics.EventLogger) *Service {
	s.logger = l
	return s
}

// ClearCacheForRepository invalidates every cached result that
// referenced repository. Callers invoke this after any write to that
// repository's graph (ingestion, migration import, node/edge CRUD).
func (s *Service) ClearCacheForRepository(repository string) {
	s.cache.clearForRepository(repository)
}

// DependencyQuery configures getDependencies/getDependents.
type DependencyQuery struct {
	EntityType        string
	EntityPath        string
	Repository        string
	Depth             int
	IncludeTransitive bool
	RelationshipTypes []string
}

// DependencyQueryResult is getDependencies'/getDependents' response,
// with getDependents' impact-analysis block populated only by
// GetDependents.
type DependencyQueryResult struct {
	Result       graph.DependencyResult
	FromCache    bool
	ImpactCounts *ImpactAnalysis
}

// ImpactAnalysis is the extra block getDependents adds over
// getDependencies (§4.4).
type ImpactAnalysis struct {
	DirectImpactCount     int
	TransitiveImpactCount int
	ImpactScore           float64
}

func (q DependencyQuery) args() map[string]interface{} {
	return map[string]interface{}{
		"entityType":        q.EntityType,
		"entityPath":        q.EntityPath,
		"repository":        q.Repository,
		"depth":             q.Depth,
		"includeTransitive": q.IncludeTransitive,
		"relationshipTypes": q.RelationshipTypes,
	}
}

func (q DependencyQuery) validate() error {
	if q.EntityPath == "" {
		return &errs.GraphServiceValidationError{Field: "entityPath", Message: "must not be empty"}
	}
	if q.Depth < 1 || q.Depth > 5 {
		return &errs.GraphServiceValidationError{Field: "depth", Message: "must be in [1,5]"}
	}
	return nil
}

// GetDependencies resolves an entity's outgoing dependencies.
func (s *Service) GetDependencies(ctx context.Context, q DependencyQuery) (DependencyQueryResult, error) {
	return s.dependencyQuery(ctx, types.QueryDependencies, graph.DirectionDependsOn, q)
}

// GetDependents resolves an entity's incoming dependents and adds the
// impact-analysis block.
func (s *Service) GetDependents(ctx context.Context, q DependencyQuery) (DependencyQueryResult, error) {
	out, err := s.dependencyQuery(ctx, types.QueryDependents, graph.DirectionDependedOnBy, q)
	if err != nil {
		return out, err
	}
	out.ImpactCounts = &ImpactAnalysis{
		DirectImpactCount:     len(out.Result.Direct),
		TransitiveImpactCount: len(out.Result.Transitive),
		ImpactScore:           out.Result.ImpactScore,
	}
	return out, nil
}

func (s *Service) dependencyQuery(ctx context.Context, queryType types.QueryType, dir graph.Direction, q DependencyQuery) (DependencyQueryResult, error) {
	if err := q.validate(); err != nil {
		return DependencyQueryResult{}, err
	}

	start := time.Now()
	key := cacheKey(string(queryType), q.args())
	if entry, ok := s.cache.get(key); ok {
		result := entry.result.(graph.DependencyResult)
		s.recordMetric(queryType, q.Repository, q.Depth, len(result.Direct)+len(result.Transitive), time.Since(start).Milliseconds(), true, "")
		return DependencyQueryResult{Result: result, FromCache: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.adapter.AnalyzeDependencies(ctx, graph.DependencyOptions{
		Target:     q.EntityPath,
		Direction:  dir,
		Transitive: q.IncludeTransitive,
		MaxDepth:   q.Depth,
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		wrapped := s.classifyErr(string(queryType), ctx, elapsed, err)
		s.recordMetric(queryType, q.Repository, q.Depth, 0, elapsed, false, wrapped.Error())
		return DependencyQueryResult{}, wrapped
	}

	s.cache.put(key, cacheEntry{result: result, repository: q.Repository})
	s.recordMetric(queryType, q.Repository, q.Depth, len(result.Direct)+len(result.Transitive), elapsed, false, "")
	return DependencyQueryResult{Result: result, FromCache: false}, nil
}

// PathQuery configures getPath.
type PathQuery struct {
	FromEntity        string
	ToEntity          string
	Repository        string
	MaxHops           int
	RelationshipTypes []string
}

// PathResult is getPath's response (§4.4).
type PathResult struct {
	PathExists bool
	Path       []types.Node
	Metadata   map[string]interface{}
	FromCache  bool
}

// GetPath finds a path between two entities, bounded by maxHops <= 10.
func (s *Service) GetPath(ctx context.Context, q PathQuery) (PathResult, error) {
	if q.FromEntity == "" || q.ToEntity == "" {
		return PathResult{}, &errs.GraphServiceValidationError{Field: "fromEntity/toEntity", Message: "must not be empty"}
	}
	if q.MaxHops < 1 || q.MaxHops > 10 {
		return PathResult{}, &errs.GraphServiceValidationError{Field: "maxHops", Message: "must be in [1,10]"}
	}

	args := map[string]interface{}{
		"fromEntity": q.FromEntity, "toEntity": q.ToEntity,
		"repository": q.Repository, "maxHops": q.MaxHops,
		"relationshipTypes": q.RelationshipTypes,
	}
	start := time.Now()
	key := cacheKey(string(types.QueryPath), args)
	if entry, ok := s.cache.get(key); ok {
		result := entry.result.(PathResult)
		result.FromCache = true
		s.recordMetric(types.QueryPath, q.Repository, q.MaxHops, len(result.Path), time.Since(start).Milliseconds(), true, "")
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	traversal, err := s.adapter.Traverse(ctx, graph.TraverseOptions{
		StartNodeID:   q.FromEntity,
		Relationships: q.RelationshipTypes,
		Depth:         q.MaxHops,
		Repository:    q.Repository,
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		wrapped := s.classifyErr(string(types.QueryPath), ctx, elapsed, err)
		s.recordMetric(types.QueryPath, q.Repository, q.MaxHops, 0, elapsed, false, wrapped.Error())
		return PathResult{}, wrapped
	}

	found := false
	for _, n := range traversal.Nodes {
		if n.ID == q.ToEntity {
			found = true
			break
		}
	}
	result := PathResult{
		PathExists: found,
		Path:       traversal.Nodes,
		Metadata:   map[string]interface{}{"hops_walked": q.MaxHops},
	}

	s.cache.put(key, cacheEntry{result: result, repository: q.Repository})
	s.recordMetric(types.QueryPath, q.Repository, q.MaxHops, len(result.Path), elapsed, false, "")
	result.FromCache = false
	return result, nil
}

// ArchitectureQuery configures getArchitecture.
type ArchitectureQuery struct {
	Repository      string
	Scope           string
	DetailLevel     string // one of packages, modules, files, entities
	IncludeExternal bool
}

// ArchitectureNode is one tree node in an ArchitectureResult.
type ArchitectureNode struct {
	Name     string
	Type     string
	Path     string
	Children []ArchitectureNode
	Metrics  map[string]interface{}
}

// ArchitectureResult is getArchitecture's response (§4.4).
type ArchitectureResult struct {
	Root                    ArchitectureNode
	InterModuleDependencies []types.Relationship
	FromCache               bool
}

var validDetailLevels = map[string]bool{"packages": true, "modules": true, "files": true, "entities": true}

// GetArchitecture builds a tree of the repository's structure at the
// requested detail level plus its inter-module dependency edges.
func (s *Service) GetArchitecture(ctx context.Context, q ArchitectureQuery) (ArchitectureResult, error) {
	if q.Repository == "" {
		return ArchitectureResult{}, &errs.GraphServiceValidationError{Field: "repository", Message: "must not be empty"}
	}
	if q.DetailLevel == "" {
		q.DetailLevel = "modules"
	}
	if !validDetailLevels[q.DetailLevel] {
		return ArchitectureResult{}, &errs.GraphServiceValidationError{Field: "detailLevel", Message: "must be one of packages, modules, files, entities"}
	}

	args := map[string]interface{}{
		"repository": q.Repository, "scope": q.Scope,
		"detailLevel": q.DetailLevel, "includeExternal": q.IncludeExternal,
	}
	start := time.Now()
	key := cacheKey(string(types.QueryArchitecture), args)
	if entry, ok := s.cache.get(key); ok {
		result := entry.result.(ArchitectureResult)
		result.FromCache = true
		s.recordMetric(types.QueryArchitecture, q.Repository, 0, len(result.Root.Children), time.Since(start).Milliseconds(), true, "")
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctxResult, err := s.adapter.GetContext(ctx, graph.ContextOptions{
		Seeds:          []string{q.Repository},
		IncludeContext: []graph.ContextKind{graph.ContextImports},
		Limit:          500,
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		wrapped := s.classifyErr(string(types.QueryArchitecture), ctx, elapsed, err)
		s.recordMetric(types.QueryArchitecture, q.Repository, 0, 0, elapsed, false, wrapped.Error())
		return ArchitectureResult{}, wrapped
	}

	root := buildArchitectureTree(q.Repository, q.DetailLevel, ctxResult.Context, q.IncludeExternal)
	edges, err := s.interModuleEdges(ctx, q.Repository, ctxResult.Context)
	if err != nil {
		wrapped := s.classifyErr(string(types.QueryArchitecture), ctx, elapsed, err)
		s.recordMetric(types.QueryArchitecture, q.Repository, 0, 0, elapsed, false, wrapped.Error())
		return ArchitectureResult{}, wrapped
	}
	result := ArchitectureResult{Root: root, InterModuleDependencies: edges}

	s.cache.put(key, cacheEntry{result: result, repository: q.Repository})
	s.recordMetric(types.QueryArchitecture, q.Repository, 0, len(root.Children), elapsed, false, "")
	result.FromCache = false
	return result, nil
}

func buildArchitectureTree(repository, detailLevel string, nodes []types.Node, includeExternal bool) ArchitectureNode {
	root := ArchitectureNode{Name: repository, Type: "repository", Metrics: map[string]interface{}{"node_count": len(nodes)}}
	wantLabel := map[string]string{
		"packages": string(types.LabelModule),
		"modules":  string(types.LabelModule),
		"files":    string(types.LabelFile),
		"entities": string(types.LabelFunction),
	}[detailLevel]

	for _, n := range nodes {
		if !includeExternal {
			if rv, ok := n.Props["repository"]; ok && rv != repository {
				continue
			}
		}
		if !hasLabel(n, wantLabel) {
			continue
		}
		name, _ := n.Props["name"].(string)
		path, _ := n.Props["path"].(string)
		root.Children = append(root.Children, ArchitectureNode{Name: name, Type: wantLabel, Path: path})
	}
	return root
}

func hasLabel(n types.Node, label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// interModuleEdges derives the architecture tree's cross-module edge
// set via a second round trip: GetContext only returns nodes, so the
// IMPORTS relationships between the Files in the tree and the Modules
// they depend on are fetched directly with RunQuery and filtered down
// to the modules already present in nodes.
func (s *Service) interModuleEdges(ctx context.Context, repository string, nodes []types.Node) ([]types.Relationship, error) {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if hasLabel(n, string(types.LabelModule)) {
			if name, ok := n.Props["name"].(string); ok {
				known[name] = true
			}
		}
	}
	if len(known) == 0 {
		return nil, nil
	}

	rows, err := s.adapter.RunQuery(ctx, `
		MATCH (f:File)-[:IMPORTS]->(m:Module)
		WHERE f.repository = $repository
		RETURN DISTINCT f.path AS fromPath, m.name AS toName
	`, map[string]interface{}{"repository": repository})
	if err != nil {
		return nil, err
	}

	var edges []types.Relationship
	for _, row := range rows {
		toName := fmt.Sprint(row["toName"])
		if !known[toName] {
			continue
		}
		edges = append(edges, types.Relationship{
			Type:   "IMPORTS",
			FromID: fmt.Sprint(row["fromPath"]),
			ToID:   toName,
		})
	}
	return edges, nil
}

func (s *Service) recordMetric(queryType types.QueryType, repository string, depth, resultCount int, elapsedMs int64, fromCache bool, errMsg string) {
	if s.ring != nil {
		s.ring.Record(types.GraphQueryRecord{
			QueryType:   queryType,
			Timestamp:   time.Now(),
			DurationMs:  elapsedMs,
			ResultCount: resultCount,
			Depth:       depth,
			FromCache:   fromCache,
			Repository:  repository,
			Error:       errMsg,
		})
	}
	if s.logger != nil && errMsg == "" {
		s.logger.LogGraphQuery(string(queryType), repository, resultCount, elapsedMs, fromCache)
	}
}

func (s *Service) classifyErr(method string, ctx context.Context, elapsedMs int64, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &errs.GraphServiceTimeoutError{Method: method, ElapsedMs: elapsedMs}
	}
	return &errs.GraphServiceOperationError{Method: method, Cause: err, Retry: errs.IsRetryable(err)}
}
