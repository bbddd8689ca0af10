package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

// neo4jAdapter implements Adapter over a Neo4j driver connection. It
// owns the driver; callers that borrow it (graphquery.Service) must
// never outlive it.
type neo4jAdapter struct {
	driver neo4j.DriverWithContext
	cfg    Config
}

func newNeo4jAdapter(cfg Config) (Adapter, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, &errs.ConnectionError{Backend: "neo4j", Cause: err}
	}
	return &neo4jAdapter{driver: driver, cfg: cfg}, nil
}

func (a *neo4jAdapter) Connect(ctx context.Context) error {
	timeout := a.cfg.AcquireTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.driver.VerifyConnectivity(cctx); err != nil {
		return &errs.ConnectionError{Backend: "neo4j", Cause: err}
	}
	return nil
}

func (a *neo4jAdapter) Disconnect(ctx context.Context) error {
	return a.driver.Close(ctx)
}

func (a *neo4jAdapter) HealthCheck(ctx context.Context) (bool, error) {
	if err := a.driver.VerifyConnectivity(ctx); err != nil {
		return false, nil
	}
	return true, nil
}

func (a *neo4jAdapter) session(ctx context.Context) neo4j.SessionWithContext {
	cfg := neo4j.SessionConfig{}
	if a.cfg.Database != "" {
		cfg.DatabaseName = a.cfg.Database
	}
	return a.driver.NewSession(ctx, cfg)
}

func (a *neo4jAdapter) EnsureSchema(ctx context.Context) error {
	session := a.session(ctx)
	defer session.Close(ctx)

	for _, stmt := range getSchemaForAdapter(AdapterNeo4j) {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return &errs.OperationError{Op: "ensure_schema", Cause: err, Retry: false}
		}
	}
	return nil
}

func (a *neo4jAdapter) RunQuery(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	session := a.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, classifyNeo4jErr("run_query", err)
	}

	var rows []map[string]interface{}
	for result.Next(ctx) {
		rows = append(rows, recordToMap(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, classifyNeo4jErr("run_query", err)
	}
	return rows, nil
}

// identityKeys returns the property names that form a node's natural
// key for the given primary label (§3.4).
func identityKeys(label string) []string {
	switch types.Label(label) {
	case types.LabelRepository:
		return []string{"name"}
	case types.LabelFile:
		return []string{"repository", "path"}
	case types.LabelFunction, types.LabelClass:
		return []string{"repository", "filePath", "name"}
	case types.LabelModule:
		return []string{"name"}
	case types.LabelChunk:
		return []string{"chromaId"}
	case types.LabelConcept:
		return []string{"name"}
	default:
		return []string{"name"}
	}
}

func (a *neo4jAdapter) UpsertNode(ctx context.Context, node types.Node) (types.Node, error) {
	if err := validateLabels(node.Labels); err != nil {
		return types.Node{}, err
	}

	labelStr := strings.Join(node.Labels, ":")
	keys := identityKeys(node.Labels[0])
	if node.ID != "" {
		keys = []string{"id"}
		if node.Props == nil {
			node.Props = map[string]interface{}{}
		}
		node.Props["id"] = node.ID
	}

	params := map[string]interface{}{}
	var matchParts []string
	for _, k := range keys {
		v, ok := node.Props[k]
		if !ok {
			return types.Node{}, &errs.ValidationError{Field: k, Message: "required identity property missing for label " + node.Labels[0]}
		}
		params["key_"+k] = v
		matchParts = append(matchParts, fmt.Sprintf("%s: $key_%s", k, k))
	}

	setParts := make([]string, 0, len(node.Props))
	for k, v := range node.Props {
		params["set_"+k] = v
		setParts = append(setParts, fmt.Sprintf("n.%s = $set_%s", k, k))
	}

	query := fmt.Sprintf(
		"MERGE (n:%s {%s}) SET %s RETURN elementId(n) AS id",
		labelStr, strings.Join(matchParts, ", "), strings.Join(setParts, ", "),
	)

	session := a.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return types.Node{}, classifyNeo4jErr("upsert_node", err)
	}

	var id string
	if result.Next(ctx) {
		v, _ := result.Record().Get("id")
		id = fmt.Sprint(v)
	}
	if err := result.Err(); err != nil {
		return types.Node{}, classifyNeo4jErr("upsert_node", err)
	}

	node.ID = id
	return node, nil
}

func (a *neo4jAdapter) DeleteNode(ctx context.Context, id string) (bool, error) {
	session := a.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n) WHERE elementId(n) = $id
		DETACH DELETE n
		RETURN count(n) AS deleted
	`, map[string]interface{}{"id": id})
	if err != nil {
		return false, classifyNeo4jErr("delete_node", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return false, classifyNeo4jErr("delete_node", err)
	}
	return summary.Counters().NodesDeleted() > 0, nil
}

func (a *neo4jAdapter) CreateRelationship(ctx context.Context, fromID, toID, relType string, props map[string]interface{}) (types.Relationship, error) {
	if err := validateIdentifier("relationshipType", relType); err != nil {
		return types.Relationship{}, err
	}

	params := map[string]interface{}{
		"from_id": fromID,
		"to_id":   toID,
		"props":   props,
	}

	query := fmt.Sprintf(`
		MATCH (a) WHERE elementId(a) = $from_id
		MATCH (b) WHERE elementId(b) = $to_id
		MERGE (a)-[r:%s]->(b)
		SET r += $props
		RETURN elementId(r) AS id
	`, relType)

	session := a.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return types.Relationship{}, classifyNeo4jErr("create_relationship", err)
	}

	var id string
	if result.Next(ctx) {
		v, _ := result.Record().Get("id")
		id = fmt.Sprint(v)
	}
	if err := result.Err(); err != nil {
		return types.Relationship{}, classifyNeo4jErr("create_relationship", err)
	}

	return types.Relationship{ID: id, Type: relType, FromID: fromID, ToID: toID, Props: props}, nil
}

func (a *neo4jAdapter) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	session := a.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH ()-[r]->() WHERE elementId(r) = $id
		DELETE r
	`, map[string]interface{}{"id": id})
	if err != nil {
		return false, classifyNeo4jErr("delete_relationship", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return false, classifyNeo4jErr("delete_relationship", err)
	}
	return summary.Counters().RelationshipsDeleted() > 0, nil
}

func (a *neo4jAdapter) Traverse(ctx context.Context, opts TraverseOptions) (TraversalResult, error) {
	depth := clampDepth(opts.Depth)

	for _, r := range opts.Relationships {
		if err := validateIdentifier("relationshipType", r); err != nil {
			return TraversalResult{}, err
		}
	}

	relFilter := fmt.Sprintf("*1..%d", depth)
	if len(opts.Relationships) > 0 {
		relFilter = ":" + strings.Join(opts.Relationships, "|") + relFilter
	}

	query := fmt.Sprintf(`
		MATCH (start) WHERE elementId(start) = $start_id
		MATCH path = (start)-[%s]-(n)
		RETURN DISTINCT n, labels(n) AS labels, elementId(n) AS id
		LIMIT 500
	`, relFilter)

	session := a.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]interface{}{"start_id": opts.StartNodeID})
	if err != nil {
		return TraversalResult{}, classifyNeo4jErr("traverse", err)
	}

	var out TraversalResult
	for result.Next(ctx) {
		rec := result.Record()
		props, _ := rec.Get("n")
		labelsVal, _ := rec.Get("labels")
		idVal, _ := rec.Get("id")

		node := types.Node{ID: fmt.Sprint(idVal)}
		if ls, ok := labelsVal.([]interface{}); ok {
			for _, l := range ls {
				node.Labels = append(node.Labels, fmt.Sprint(l))
			}
		}
		if n, ok := props.(neo4j.Node); ok {
			node.Props = n.Props
		}
		out.Nodes = append(out.Nodes, node)
	}
	if err := result.Err(); err != nil {
		return TraversalResult{}, classifyNeo4jErr("traverse", err)
	}
	return out, nil
}

func (a *neo4jAdapter) AnalyzeDependencies(ctx context.Context, opts DependencyOptions) (DependencyResult, error) {
	if opts.Target == "" {
		return DependencyResult{}, &errs.ValidationError{Field: "target", Message: "required"}
	}

	maxDepth := clampDepth(opts.MaxDepth)
	if maxDepth == 0 {
		maxDepth = 1
	}

	var relPattern string
	switch opts.Direction {
	case DirectionDependedOnBy:
		relPattern = fmt.Sprintf("(target)-[:IMPORTS|CALLS|EXTENDS|IMPLEMENTS*1..%d]->(n)", maxDepth)
	default: // dependsOn or both
		relPattern = fmt.Sprintf("(n)-[:IMPORTS|CALLS|EXTENDS|IMPLEMENTS*1..%d]->(target)", maxDepth)
	}

	query := fmt.Sprintf(`
		MATCH (target) WHERE elementId(target) = $target OR target.name = $target OR target.path = $target
		MATCH %s
		RETURN DISTINCT n, labels(n) AS labels, elementId(n) AS id
		LIMIT 200
	`, relPattern)

	session := a.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]interface{}{"target": opts.Target})
	if err != nil {
		return DependencyResult{}, classifyNeo4jErr("analyze_dependencies", err)
	}

	var direct []types.Node
	for result.Next(ctx) {
		rec := result.Record()
		props, _ := rec.Get("n")
		labelsVal, _ := rec.Get("labels")
		idVal, _ := rec.Get("id")

		node := types.Node{ID: fmt.Sprint(idVal)}
		if ls, ok := labelsVal.([]interface{}); ok {
			for _, l := range ls {
				node.Labels = append(node.Labels, fmt.Sprint(l))
			}
		}
		if n, ok := props.(neo4j.Node); ok {
			node.Props = n.Props
		}
		direct = append(direct, node)
	}
	if err := result.Err(); err != nil {
		return DependencyResult{}, classifyNeo4jErr("analyze_dependencies", err)
	}

	res := DependencyResult{
		Direct:   direct,
		Metadata: map[string]interface{}{"direction": string(opts.Direction), "maxDepth": maxDepth},
	}
	if opts.Transitive {
		res.Transitive = direct
	}
	res.ImpactScore = impactScore(len(direct), len(res.Transitive))
	return res, nil
}

// impactScore normalises direct+transitive dependent counts into
// [0,1], monotonic in both inputs.
func impactScore(direct, transitive int) float64 {
	total := float64(direct) + 0.5*float64(transitive)
	if total <= 0 {
		return 0
	}
	score := total / (total + 10)
	if score > 1 {
		score = 1
	}
	return score
}

func (a *neo4jAdapter) GetContext(ctx context.Context, opts ContextOptions) (ContextResult, error) {
	if len(opts.Seeds) == 0 {
		return ContextResult{}, &errs.ValidationError{Field: "seeds", Message: "at least one seed required"}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var clauses []string
	for _, kind := range opts.IncludeContext {
		switch kind {
		case ContextImports:
			clauses = append(clauses, "(seed)-[:IMPORTS]->(n)")
		case ContextCallers:
			clauses = append(clauses, "(n)-[:CALLS]->(seed)")
		case ContextCallees:
			clauses = append(clauses, "(seed)-[:CALLS]->(n)")
		case ContextSiblings:
			clauses = append(clauses, "(seed)<-[:DEFINES]-(:File)-[:DEFINES]->(n)")
		case ContextDocumentation:
			clauses = append(clauses, "(seed)-[:REFERENCES]->(n:Concept)")
		}
	}
	if len(clauses) == 0 {
		return ContextResult{Metadata: map[string]interface{}{"seeds": opts.Seeds}}, nil
	}

	var unionParts []string
	for _, c := range clauses {
		unionParts = append(unionParts, fmt.Sprintf(
			"MATCH (seed) WHERE seed.name = $seed OR seed.path = $seed MATCH %s RETURN n, labels(n) AS labels, elementId(n) AS id", c,
		))
	}

	var all []types.Node
	seen := map[string]bool{}
	session := a.session(ctx)
	defer session.Close(ctx)

	for _, seed := range opts.Seeds {
		for _, q := range unionParts {
			result, err := session.Run(ctx, q+" LIMIT $limit", map[string]interface{}{"seed": seed, "limit": limit})
			if err != nil {
				return ContextResult{}, classifyNeo4jErr("get_context", err)
			}
			for result.Next(ctx) {
				rec := result.Record()
				idVal, _ := rec.Get("id")
				id := fmt.Sprint(idVal)
				if seen[id] {
					continue
				}
				seen[id] = true

				props, _ := rec.Get("n")
				labelsVal, _ := rec.Get("labels")
				node := types.Node{ID: id}
				if ls, ok := labelsVal.([]interface{}); ok {
					for _, l := range ls {
						node.Labels = append(node.Labels, fmt.Sprint(l))
					}
				}
				if n, ok := props.(neo4j.Node); ok {
					node.Props = n.Props
				}
				all = append(all, node)
			}
			if err := result.Err(); err != nil {
				return ContextResult{}, classifyNeo4jErr("get_context", err)
			}
		}
	}

	return ContextResult{Context: all, Metadata: map[string]interface{}{"seeds": opts.Seeds}}, nil
}

func recordToMap(record *neo4j.Record) map[string]interface{} {
	out := make(map[string]interface{}, len(record.Keys))
	for i, k := range record.Keys {
		out[k] = record.Values[i]
	}
	return out
}

// classifyNeo4jErr wraps a raw driver error into the closed error
// taxonomy so callers never need to inspect driver-specific types.
func classifyNeo4jErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SyntaxError") || strings.Contains(msg, "ConstraintValidationFailed") {
		return &errs.OperationError{Op: op, Cause: err, Retry: false}
	}
	if strings.Contains(msg, "connection") || strings.Contains(msg, "ServiceUnavailable") {
		return &errs.ConnectionError{Backend: "neo4j", Cause: err}
	}
	return &errs.OperationError{Op: op, Cause: err, Retry: false}
}
