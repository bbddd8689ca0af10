package migrate

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"sort"

	"github.com/graphindex/core/internal/graph"
)

// DefaultSampleSize is the number of source nodes spot-checked
// against the target in ValidationResult's sampled pass (§4.6
// Validation step 3).
const DefaultSampleSize = 10

// Discrepancy is one mismatch surfaced by validation. Kind identifies
// which check produced it so callers can group a report by severity.
type Discrepancy struct {
	Kind    string
	Message string
}

// ValidationResult reports whether a completed migration's target
// graph matches its source. IsValid is true exactly when
// Discrepancies is empty.
type ValidationResult struct {
	SourceNodeCount    int
	TargetNodeCount    int
	SourceRelCount     int
	TargetRelCount     int
	SourceCountByLabel map[string]int
	TargetCountByLabel map[string]int
	SourceCountByType  map[string]int
	TargetCountByType  map[string]int
	SampledChecked     int
	SampledMismatched  int
	Discrepancies      []Discrepancy
	IsValid            bool
}

// Validator compares a source export against a target adapter that
// has already been imported into.
type Validator struct {
	target     graph.Adapter
	dialect    graph.AdapterType
	sampleSize int
}

// NewValidator builds a Validator. sampleSize <= 0 defaults to
// DefaultSampleSize.
func NewValidator(target graph.Adapter, dialect graph.AdapterType, sampleSize int) *Validator {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Validator{target: target, dialect: dialect, sampleSize: sampleSize}
}

// Validate runs all three checks from §4.6: aggregate counts,
// per-label/per-type counts, and a sampled lookup-by-_source_id pass.
func (v *Validator) Validate(ctx context.Context, nodes []ExportedNode, rels []ExportedRelationship) (ValidationResult, error) {
	result := ValidationResult{
		SourceNodeCount:    len(nodes),
		SourceRelCount:     len(rels),
		SourceCountByLabel: countByLabel(nodes),
		SourceCountByType:  countByType(rels),
	}

	targetNodeCount, targetRelCount, err := v.targetAggregateCounts(ctx)
	if err != nil {
		return result, err
	}
	result.TargetNodeCount = targetNodeCount
	result.TargetRelCount = targetRelCount
	if targetNodeCount != result.SourceNodeCount {
		result.Discrepancies = append(result.Discrepancies, Discrepancy{
			Kind:    "node_count",
			Message: fmt.Sprintf("source has %d nodes, target has %d", result.SourceNodeCount, targetNodeCount),
		})
	}
	if targetRelCount != result.SourceRelCount {
		result.Discrepancies = append(result.Discrepancies, Discrepancy{
			Kind:    "relationship_count",
			Message: fmt.Sprintf("source has %d relationships, target has %d", result.SourceRelCount, targetRelCount),
		})
	}

	targetByLabel, targetByType, err := v.targetCountsByLabelAndType(ctx)
	if err != nil {
		return result, err
	}
	result.TargetCountByLabel = targetByLabel
	result.TargetCountByType = targetByType
	for label, sourceCount := range result.SourceCountByLabel {
		if targetByLabel[label] != sourceCount {
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:    "label_count",
				Message: fmt.Sprintf("label %s: source has %d, target has %d", label, sourceCount, targetByLabel[label]),
			})
		}
	}
	for relType, sourceCount := range result.SourceCountByType {
		if targetByType[relType] != sourceCount {
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:    "relationship_type_count",
				Message: fmt.Sprintf("type %s: source has %d, target has %d", relType, sourceCount, targetByType[relType]),
			})
		}
	}

	if err := v.sampleCheck(ctx, nodes, &result); err != nil {
		return result, err
	}

	result.IsValid = len(result.Discrepancies) == 0
	return result, nil
}

func (v *Validator) targetAggregateCounts(ctx context.Context) (int, int, error) {
	nodeRows, err := v.target.RunQuery(ctx, "MATCH (n) RETURN count(n) AS c", nil)
	if err != nil {
		return 0, 0, err
	}
	relRows, err := v.target.RunQuery(ctx, "MATCH ()-[r]->() RETURN count(r) AS c", nil)
	if err != nil {
		return 0, 0, err
	}
	return toInt(firstCount(nodeRows)), toInt(firstCount(relRows)), nil
}

func (v *Validator) targetCountsByLabelAndType(ctx context.Context) (map[string]int, map[string]int, error) {
	byLabel := map[string]int{}
	labelRows, err := v.target.RunQuery(ctx, "MATCH (n) UNWIND labels(n) AS label RETURN label, count(*) AS c", nil)
	if err != nil {
		return nil, nil, err
	}
	for _, row := range labelRows {
		byLabel[fmt.Sprint(row["label"])] = toInt(row["c"])
	}

	byType := map[string]int{}
	typeRows, err := v.target.RunQuery(ctx, "MATCH ()-[r]->() RETURN type(r) AS t, count(*) AS c", nil)
	if err != nil {
		return nil, nil, err
	}
	for _, row := range typeRows {
		byType[fmt.Sprint(row["t"])] = toInt(row["c"])
	}
	return byLabel, byType, nil
}

// sampleCheck draws up to sampleSize source nodes at random and looks
// each up in the target by _source_id, confirming presence and
// property equivalence.
func (v *Validator) sampleCheck(ctx context.Context, nodes []ExportedNode, result *ValidationResult) error {
	sample := sampleNodes(nodes, v.sampleSize)
	for _, n := range sample {
		rows, err := v.target.RunQuery(ctx, "MATCH (n) WHERE n._source_id = $sid RETURN properties(n) AS props", map[string]interface{}{"sid": n.SourceID})
		if err != nil {
			return err
		}
		result.SampledChecked++
		if len(rows) == 0 {
			result.SampledMismatched++
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:    "sample_missing",
				Message: fmt.Sprintf("source node %s not found in target by _source_id", n.SourceID),
			})
			continue
		}
		targetProps := toPropsMap(rows[0]["props"])
		if !propsEquivalent(n.Props, targetProps) {
			result.SampledMismatched++
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:    "sample_mismatch",
				Message: fmt.Sprintf("source node %s properties differ in target", n.SourceID),
			})
		}
	}
	return nil
}

// propsEquivalent compares every source property against the target;
// the target is allowed extra properties (notably _source_id itself).
func propsEquivalent(source, target map[string]interface{}) bool {
	for k, v := range source {
		tv, ok := target[k]
		if !ok || !reflect.DeepEqual(v, tv) {
			return false
		}
	}
	return true
}

func sampleNodes(nodes []ExportedNode, n int) []ExportedNode {
	if len(nodes) <= n {
		return nodes
	}
	idx := rand.Perm(len(nodes))[:n]
	sort.Ints(idx)
	out := make([]ExportedNode, 0, n)
	for _, i := range idx {
		out = append(out, nodes[i])
	}
	return out
}

func countByLabel(nodes []ExportedNode) map[string]int {
	counts := map[string]int{}
	for _, n := range nodes {
		for _, l := range n.Labels {
			counts[l]++
		}
	}
	return counts
}

func countByType(rels []ExportedRelationship) map[string]int {
	counts := map[string]int{}
	for _, r := range rels {
		counts[r.Type]++
	}
	return counts
}

func firstCount(rows []map[string]interface{}) interface{} {
	if len(rows) == 0 {
		return 0
	}
	return rows[0]["c"]
}

func toInt(v interface{}) int {
	switch vv := v.(type) {
	case int:
		return vv
	case int64:
		return int(vv)
	case float64:
		return int(vv)
	default:
		return 0
	}
}
