// Package migrate implements Graph Data Migration (C5/M1): exporting
// a whole graph from one adapter and importing it into another with
// identity remapping and sampled validation (§4.6). It operates only
// through the graph.Adapter contract — a migration never needs to
// know which backend sits on either side.
package migrate

import (
	"context"
	"fmt"

	"github.com/graphindex/core/internal/graph"
)

// ExportBatchSize is the page size used when streaming nodes and
// relationships out of the source adapter.
const ExportBatchSize = 1000

// ExportedNode is one node as it existed in the source graph, keyed
// by the source backend's own id so relationships can reference it
// before the target has minted anything.
type ExportedNode struct {
	SourceID string
	Labels   []string
	Props    map[string]interface{}
}

// ExportedRelationship is one edge as it existed in the source graph.
type ExportedRelationship struct {
	SourceID      string
	Type          string
	StartSourceID string
	EndSourceID   string
	Props         map[string]interface{}
}

// idFunction returns the Cypher function that yields a stable node
// identifier for the given dialect: FalkorDB's Cypher subset only
// understands the legacy id(n), while Neo4j 5 warns on id(n) and
// expects elementId(n) instead (§4.3's polymorphic adapter split).
func idFunction(dialect graph.AdapterType) string {
	if dialect == graph.AdapterFalkorDB {
		return "id"
	}
	return "elementId"
}

// Exporter streams every node and relationship out of a source
// adapter in deterministic SKIP/LIMIT batches (§4.6 Export).
type Exporter struct {
	adapter   graph.Adapter
	dialect   graph.AdapterType
	batchSize int
}

// NewExporter builds an Exporter. dialect tells the exporter which id
// function the source backend's Cypher dialect supports; the caller
// already knows this from the GraphConfig used to construct adapter.
func NewExporter(adapter graph.Adapter, dialect graph.AdapterType) *Exporter {
	return &Exporter{adapter: adapter, dialect: dialect, batchSize: ExportBatchSize}
}

// ExportNodes streams every node in the source graph, page by page.
func (e *Exporter) ExportNodes(ctx context.Context) ([]ExportedNode, error) {
	idFn := idFunction(e.dialect)
	var all []ExportedNode
	for skip := 0; ; skip += e.batchSize {
		query := fmt.Sprintf(
			"MATCH (n) RETURN %s(n) AS id, labels(n) AS labels, properties(n) AS props ORDER BY %s(n) SKIP $skip LIMIT $limit",
			idFn, idFn,
		)
		rows, err := e.adapter.RunQuery(ctx, query, map[string]interface{}{"skip": skip, "limit": e.batchSize})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			all = append(all, ExportedNode{
				SourceID: fmt.Sprint(row["id"]),
				Labels:   toStringSlice(row["labels"]),
				Props:    toPropsMap(row["props"]),
			})
		}
		if len(rows) < e.batchSize {
			break
		}
	}
	return all, nil
}

// ExportRelationships streams every relationship in the source graph,
// page by page, recording each edge's source id and its endpoints'
// source ids so Importer can remap them.
func (e *Exporter) ExportRelationships(ctx context.Context) ([]ExportedRelationship, error) {
	idFn := idFunction(e.dialect)
	var all []ExportedRelationship
	for skip := 0; ; skip += e.batchSize {
		query := fmt.Sprintf(
			`MATCH (a)-[r]->(b)
			 RETURN %s(r) AS id, type(r) AS type, %s(a) AS startId, %s(b) AS endId, properties(r) AS props
			 ORDER BY %s(r) SKIP $skip LIMIT $limit`,
			idFn, idFn, idFn, idFn,
		)
		rows, err := e.adapter.RunQuery(ctx, query, map[string]interface{}{"skip": skip, "limit": e.batchSize})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			all = append(all, ExportedRelationship{
				SourceID:      fmt.Sprint(row["id"]),
				Type:          fmt.Sprint(row["type"]),
				StartSourceID: fmt.Sprint(row["startId"]),
				EndSourceID:   fmt.Sprint(row["endId"]),
				Props:         toPropsMap(row["props"]),
			})
		}
		if len(rows) < e.batchSize {
			break
		}
	}
	return all, nil
}

func toStringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, len(vv))
		for i, item := range vv {
			out[i] = fmt.Sprint(item)
		}
		return out
	default:
		return nil
	}
}

func toPropsMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
