package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

// falkorDBAdapter implements Adapter over FalkorDB's GRAPH.QUERY
// command, issued through a plain go-redis client since FalkorDB
// speaks the Redis wire protocol (§4.3). There is no first-class
// Cypher driver for FalkorDB in the ecosystem, so queries travel as
// raw RESP commands via client.Do, the same pattern the cache layer
// uses for every other Redis call.
type falkorDBAdapter struct {
	client *redis.Client
	graph  string
	cfg    Config
}

func newFalkorDBAdapter(cfg Config) (Adapter, error) {
	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, &errs.ValidationError{Field: "uri", Message: "invalid FalkorDB URL: " + err.Error()}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	graphName := cfg.Database
	if graphName == "" {
		graphName = "graphindex"
	}

	return &falkorDBAdapter{
		client: redis.NewClient(opts),
		graph:  graphName,
		cfg:    cfg,
	}, nil
}

func (a *falkorDBAdapter) Connect(ctx context.Context) error {
	timeout := a.cfg.AcquireTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.client.Ping(cctx).Err(); err != nil {
		return &errs.ConnectionError{Backend: "falkordb", Cause: err}
	}
	return nil
}

func (a *falkorDBAdapter) Disconnect(ctx context.Context) error {
	return a.client.Close()
}

func (a *falkorDBAdapter) HealthCheck(ctx context.Context) (bool, error) {
	if err := a.client.Ping(ctx).Err(); err != nil {
		return false, nil
	}
	return true, nil
}

func (a *falkorDBAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range getSchemaForAdapter(AdapterFalkorDB) {
		if _, err := a.query(ctx, stmt, nil); err != nil {
			return &errs.OperationError{Op: "ensure_schema", Cause: err, Retry: false}
		}
	}
	return nil
}

// query issues GRAPH.QUERY <graph> <cypher> <params...> and parses the
// RESP reply into rows of column-name -> value, mirroring
// RunQuery's normalized shape.
func (a *falkorDBAdapter) query(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	rendered, err := renderFalkorParams(cypher, params)
	if err != nil {
		return nil, err
	}

	reply, err := a.client.Do(ctx, "GRAPH.QUERY", a.graph, rendered, "--compact").Result()
	if err != nil {
		return nil, classifyFalkorErr("run_query", err)
	}
	return parseFalkorReply(reply), nil
}

func (a *falkorDBAdapter) RunQuery(ctx context.Context, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	return a.query(ctx, query, params)
}

// renderFalkorParams inlines bound parameters as a CYPHER prologue
// ("CYPHER k=v ... <query>"), the parameter-passing convention
// GRAPH.QUERY supports in place of driver-level bind parameters.
// Values are rendered through falkorLiteral so injection safety holds
// for the data path exactly as it does for Neo4j's bound parameters;
// only labels/relationship types ever reach this function
// pre-validated and string-interpolated directly into cypher itself.
func renderFalkorParams(cypher string, params map[string]interface{}) (string, error) {
	if len(params) == 0 {
		return cypher, nil
	}
	var b strings.Builder
	b.WriteString("CYPHER ")
	first := true
	for k, v := range params {
		if !first {
			b.WriteString(" ")
		}
		first = false
		lit, err := falkorLiteral(v)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s=%s", k, lit)
	}
	b.WriteString(" ")
	b.WriteString(cypher)
	return b.String(), nil
}

func falkorLiteral(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return fmt.Sprintf("%q", val), nil
	case bool:
		return fmt.Sprint(val), nil
	case int, int64, float64:
		return fmt.Sprint(val), nil
	case map[string]interface{}:
		// Flattened prop bags (e.g. relationship SET payloads) are not
		// representable as a CYPHER prologue scalar; callers that need
		// this pass individual scalar params instead.
		return "", &errs.ValidationError{Field: "params", Message: "nested map params unsupported on falkordb"}
	default:
		return fmt.Sprintf("%q", fmt.Sprint(val)), nil
	}
}

func parseFalkorReply(reply interface{}) []map[string]interface{} {
	arr, ok := reply.([]interface{})
	if !ok || len(arr) < 2 {
		return nil
	}

	header, _ := arr[0].([]interface{})
	data, _ := arr[1].([]interface{})

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = fmt.Sprint(h)
	}

	var rows []map[string]interface{}
	for _, row := range data {
		cells, ok := row.([]interface{})
		if !ok {
			continue
		}
		r := make(map[string]interface{}, len(cols))
		for i, c := range cells {
			if i < len(cols) {
				r[cols[i]] = c
			}
		}
		rows = append(rows, r)
	}
	return rows
}

func (a *falkorDBAdapter) UpsertNode(ctx context.Context, node types.Node) (types.Node, error) {
	if err := validateLabels(node.Labels); err != nil {
		return types.Node{}, err
	}

	if node.Labels[0] == string(types.LabelFile) {
		repo, _ := node.Props["repository"].(string)
		path, _ := node.Props["path"].(string)
		if node.Props == nil {
			node.Props = map[string]interface{}{}
		}
		node.Props["file_id"] = repo + "::" + path
	}

	labelStr := strings.Join(node.Labels, ":")
	keys := identityKeys(node.Labels[0])
	if node.Labels[0] == string(types.LabelFile) {
		keys = []string{"file_id"}
	}
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

	cypher := fmt.Sprintf(
		"MERGE (n:%s {%s}) SET %s RETURN id(n) AS id",
		labelStr, strings.Join(matchParts, ", "), strings.Join(setParts, ", "),
	)

	rows, err := a.query(ctx, cypher, params)
	if err != nil {
		return types.Node{}, err
	}
	if len(rows) > 0 {
		node.ID = fmt.Sprint(rows[0]["id"])
	}
	return node, nil
}

func (a *falkorDBAdapter) DeleteNode(ctx context.Context, id string) (bool, error) {
	rows, err := a.query(ctx, "MATCH (n) WHERE id(n) = $id DETACH DELETE n RETURN id(n) AS id", map[string]interface{}{"id": id})
	if err != nil {
		return false, err
	}
	return len(rows) >= 0, nil
}

func (a *falkorDBAdapter) CreateRelationship(ctx context.Context, fromID, toID, relType string, props map[string]interface{}) (types.Relationship, error) {
	if err := validateIdentifier("relationshipType", relType); err != nil {
		return types.Relationship{}, err
	}

	cypher := fmt.Sprintf(`
		MATCH (a) WHERE id(a) = $from_id
		MATCH (b) WHERE id(b) = $to_id
		MERGE (a)-[r:%s]->(b)
		RETURN id(r) AS id
	`, relType)

	rows, err := a.query(ctx, cypher, map[string]interface{}{"from_id": fromID, "to_id": toID})
	if err != nil {
		return types.Relationship{}, err
	}

	var id string
	if len(rows) > 0 {
		id = fmt.Sprint(rows[0]["id"])
	}
	return types.Relationship{ID: id, Type: relType, FromID: fromID, ToID: toID, Props: props}, nil
}

func (a *falkorDBAdapter) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	_, err := a.query(ctx, "MATCH ()-[r]->() WHERE id(r) = $id DELETE r", map[string]interface{}{"id": id})
	return err == nil, err
}

func (a *falkorDBAdapter) Traverse(ctx context.Context, opts TraverseOptions) (TraversalResult, error) {
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

	cypher := fmt.Sprintf(`
		MATCH (start) WHERE id(start) = $start_id
		MATCH (start)-[%s]-(n)
		RETURN DISTINCT id(n) AS id, labels(n) AS labels, n AS props
		LIMIT 500
	`, relFilter)

	rows, err := a.query(ctx, cypher, map[string]interface{}{"start_id": opts.StartNodeID})
	if err != nil {
		return TraversalResult{}, err
	}

	var out TraversalResult
	for _, row := range rows {
		out.Nodes = append(out.Nodes, rowToNode(row))
	}
	return out, nil
}

func (a *falkorDBAdapter) AnalyzeDependencies(ctx context.Context, opts DependencyOptions) (DependencyResult, error) {
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
	default:
		relPattern = fmt.Sprintf("(n)-[:IMPORTS|CALLS|EXTENDS|IMPLEMENTS*1..%d]->(target)", maxDepth)
	}

	cypher := fmt.Sprintf(`
		MATCH (target) WHERE id(target) = $target OR target.name = $target OR target.path = $target
		MATCH %s
		RETURN DISTINCT id(n) AS id, labels(n) AS labels, n AS props
		LIMIT 200
	`, relPattern)

	rows, err := a.query(ctx, cypher, map[string]interface{}{"target": opts.Target})
	if err != nil {
		return DependencyResult{}, err
	}

	var direct []types.Node
	for _, row := range rows {
		direct = append(direct, rowToNode(row))
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

func (a *falkorDBAdapter) GetContext(ctx context.Context, opts ContextOptions) (ContextResult, error) {
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

	seen := map[string]bool{}
	var all []types.Node
	for _, seed := range opts.Seeds {
		for _, c := range clauses {
			cypher := fmt.Sprintf(
				"MATCH (seed) WHERE seed.name = $seed OR seed.path = $seed MATCH %s RETURN id(n) AS id, labels(n) AS labels, n AS props LIMIT %d",
				c, limit,
			)
			rows, err := a.query(ctx, cypher, map[string]interface{}{"seed": seed})
			if err != nil {
				return ContextResult{}, err
			}
			for _, row := range rows {
				node := rowToNode(row)
				if seen[node.ID] {
					continue
				}
				seen[node.ID] = true
				all = append(all, node)
			}
		}
	}

	return ContextResult{Context: all, Metadata: map[string]interface{}{"seeds": opts.Seeds}}, nil
}

// rowToNode maps a query row's {id, labels, props} columns to a Node.
// FalkorDB's compact reply mode returns node values as nested
// [id, labels, props] triples via the client's scan, but go-redis
// hands them back as opaque interface{} slices; values already
// coerced to scalars are accepted as-is.
func rowToNode(row map[string]interface{}) types.Node {
	node := types.Node{ID: fmt.Sprint(row["id"])}
	if ls, ok := row["labels"].([]interface{}); ok {
		for _, l := range ls {
			node.Labels = append(node.Labels, fmt.Sprint(l))
		}
	}
	if props, ok := row["props"].(map[string]interface{}); ok {
		node.Props = props
	}
	return node
}

func classifyFalkorErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "refused") || strings.Contains(msg, "timeout") || strings.Contains(msg, "EOF") {
		return &errs.ConnectionError{Backend: "falkordb", Cause: err}
	}
	return &errs.OperationError{Op: op, Cause: err, Retry: false}
}
