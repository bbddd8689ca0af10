// Package graph provides a uniform adapter over the two supported
// graph backends (Neo4j and FalkorDB): node/edge CRUD, traversal,
// dependency analysis, and context retrieval, with injection-safety
// guarantees on every label or relationship type that must be
// string-interpolated into the query language (§4.3).
package graph

import (
	"context"
	"time"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

// AdapterType selects the backing graph engine.
type AdapterType string

const (
	AdapterNeo4j     AdapterType = "neo4j"
	AdapterFalkorDB  AdapterType = "falkordb"
)

// Config carries connection coordinates and policy for an adapter.
type Config struct {
	URI           string
	Username      string
	Password      string
	Database      string
	PoolSize      int
	AcquireTimeout time.Duration
	QueryTimeout  time.Duration
	Retry         RetryPolicy
}

// RetryPolicy configures the adapter's own backoff for retryable
// backend failures (connection resets, transient server errors).
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Direction selects which edge direction a dependency query follows.
type Direction string

const (
	DirectionDependsOn    Direction = "dependsOn"
	DirectionDependedOnBy Direction = "dependedOnBy"
	DirectionBoth         Direction = "both"
)

// TraverseOptions bounds a graph walk from a start node.
type TraverseOptions struct {
	StartNodeID   string
	Relationships []string
	Depth         int
	Repository    string
}

// TraversalResult is the normalized shape of a traversal response,
// backend-agnostic (§9 "pre-signed result shapes").
type TraversalResult struct {
	Nodes         []types.Node
	Relationships []types.Relationship
}

// DependencyOptions configures a dependency analysis query.
type DependencyOptions struct {
	Target     string
	Direction  Direction
	Transitive bool
	MaxDepth   int
}

// DependencyResult is the normalized dependency analysis response.
type DependencyResult struct {
	Direct     []types.Node
	Transitive []types.Node
	ImpactScore float64
	Metadata   map[string]interface{}
}

// ContextKind is one facet of context a caller can request.
type ContextKind string

const (
	ContextImports       ContextKind = "imports"
	ContextCallers       ContextKind = "callers"
	ContextCallees       ContextKind = "callees"
	ContextSiblings      ContextKind = "siblings"
	ContextDocumentation ContextKind = "documentation"
)

// ContextOptions requests a bundle of related context around seeds.
type ContextOptions struct {
	Seeds          []string
	IncludeContext []ContextKind
	Limit          int
}

// ContextResult is the normalized context-retrieval response.
type ContextResult struct {
	Context  []types.Node
	Metadata map[string]interface{}
}

// maxTraverseDepth is the hard clamp applied to any caller-supplied
// traversal depth (§4.3).
const maxTraverseDepth = 5

// clampDepth enforces the traversal depth cap.
func clampDepth(depth int) int {
	if depth > maxTraverseDepth {
		return maxTraverseDepth
	}
	if depth < 1 {
		return 1
	}
	return depth
}

// Adapter is the uniform capability interface over a backing graph
// engine. Implementations own the network connection; callers that
// borrow a reference (e.g. graphquery.Service) must never outlive it.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) (bool, error)

	// RunQuery is the raw query escape hatch. cypher is the dialect's
	// native query language; params travel as bound parameters.
	RunQuery(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error)

	UpsertNode(ctx context.Context, node types.Node) (types.Node, error)
	DeleteNode(ctx context.Context, id string) (bool, error)

	CreateRelationship(ctx context.Context, fromID, toID, relType string, props map[string]interface{}) (types.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) (bool, error)

	Traverse(ctx context.Context, opts TraverseOptions) (TraversalResult, error)
	AnalyzeDependencies(ctx context.Context, opts DependencyOptions) (DependencyResult, error)
	GetContext(ctx context.Context, opts ContextOptions) (ContextResult, error)

	// EnsureSchema applies the dialect's idempotent schema catalogue
	// (constraints, indexes, and — where supported — fulltext
	// indexes).
	EnsureSchema(ctx context.Context) error
}

// New constructs the adapter for the given backend type. It is the
// only construction site for graph adapters.
func New(adapterType AdapterType, cfg Config) (Adapter, error) {
	switch adapterType {
	case AdapterNeo4j:
		return newNeo4jAdapter(cfg)
	case AdapterFalkorDB:
		return newFalkorDBAdapter(cfg)
	default:
		return nil, &errs.ValidationError{Field: "adapterType", Message: "unknown adapter type: " + string(adapterType)}
	}
}
