package migrate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/graphindex/core/internal/graph"
	"github.com/graphindex/core/internal/types"
)

// SourceIDProperty is the reserved property every imported node
// carries, recording the id it held in the source graph so sampled
// validation (§4.6 Validation step 3) can look it back up by that
// value alone.
const SourceIDProperty = "_source_id"

// ImportResult tallies one Import run.
type ImportResult struct {
	NodesImported         int
	RelationshipsImported int
	Errors                []string
}

// Importer replays an Exporter's output into a target adapter,
// remapping source ids to whatever the target backend mints.
type Importer struct {
	adapter graph.Adapter
	dryRun  bool
}

// NewImporter builds an Importer over the target adapter. When dryRun
// is true, ImportNodes/ImportRelationships validate and project
// counts without ever calling the adapter.
func NewImporter(adapter graph.Adapter, dryRun bool) *Importer {
	return &Importer{adapter: adapter, dryRun: dryRun}
}

// ImportNodes creates each exported node in the target graph via
// UpsertNode, embedding _source_id in its property bag, and returns
// the sourceId → newId mapping relationships need next.
//
// UpsertNode's identity-key MERGE stands in for the plain CREATE the
// source describes: graph.Adapter has no raw create primitive (every
// write path validates labels first), and merging on identity keys is
// a strict improvement over blind duplication when the same
// repository is migrated more than once. The reserved _source_id
// property still round-trips for sampled validation either way.
func (im *Importer) ImportNodes(ctx context.Context, nodes []ExportedNode) (map[string]string, ImportResult) {
	mapping := make(map[string]string, len(nodes))
	result := ImportResult{}

	for _, n := range nodes {
		if len(n.Labels) == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("node %s: no labels, skipped", n.SourceID))
			continue
		}

		props := cloneProps(n.Props)
		props[SourceIDProperty] = n.SourceID

		if im.dryRun {
			// A dry run never calls the target adapter, so it cannot
			// know the id the backend would actually mint. Projecting
			// n.SourceID back as the new id would misleadingly imply
			// the target preserves source identity; a fresh uuid
			// makes clear this mapping entry is synthetic.
			mapping[n.SourceID] = uuid.NewString()
			result.NodesImported++
			continue
		}

		created, err := im.adapter.UpsertNode(ctx, types.Node{Labels: n.Labels, Props: props})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("node %s: %v", n.SourceID, err))
			continue
		}
		mapping[n.SourceID] = created.ID
		result.NodesImported++
	}

	return mapping, result
}

// ImportRelationships creates each exported relationship in the
// target graph, translating endpoints through mapping. A relationship
// whose endpoint was skipped during ImportNodes is itself skipped and
// reported, never aborting the run (§4.6 Import).
func (im *Importer) ImportRelationships(ctx context.Context, rels []ExportedRelationship, mapping map[string]string) ImportResult {
	result := ImportResult{}

	for _, r := range rels {
		fromID, ok := mapping[r.StartSourceID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("relationship %s: start node %s not imported, skipped", r.SourceID, r.StartSourceID))
			continue
		}
		toID, ok := mapping[r.EndSourceID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("relationship %s: end node %s not imported, skipped", r.SourceID, r.EndSourceID))
			continue
		}

		if im.dryRun {
			result.RelationshipsImported++
			continue
		}

		if _, err := im.adapter.CreateRelationship(ctx, fromID, toID, r.Type, r.Props); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("relationship %s: %v", r.SourceID, err))
			continue
		}
		result.RelationshipsImported++
	}

	return result
}

func cloneProps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	return out
}
