package migrate

import (
	"context"

	"github.com/graphindex/core/internal/graph"
)

// TransferOptions configures one end-to-end migration between two
// adapters (the `graph transfer` CLI verb, §6.5).
type TransferOptions struct {
	SourceDialect graph.AdapterType
	TargetDialect graph.AdapterType
	SampleSize    int
	DryRun        bool
}

// TransferResult is the combined outcome of export, import, and
// validation.
type TransferResult struct {
	Import     ImportResult
	Validation ValidationResult
}

// Transfer exports everything from source and imports it into target,
// then validates the result. A dry run still performs the export and
// reports projected counts, but skips every target write and the
// validation pass that would otherwise depend on them (§4.6 Dry run).
func Transfer(ctx context.Context, source, target graph.Adapter, opts TransferOptions) (TransferResult, error) {
	exporter := NewExporter(source, opts.SourceDialect)

	nodes, err := exporter.ExportNodes(ctx)
	if err != nil {
		return TransferResult{}, err
	}
	rels, err := exporter.ExportRelationships(ctx)
	if err != nil {
		return TransferResult{}, err
	}

	importer := NewImporter(target, opts.DryRun)
	mapping, nodeResult := importer.ImportNodes(ctx, nodes)
	relResult := importer.ImportRelationships(ctx, rels, mapping)

	result := TransferResult{
		Import: ImportResult{
			NodesImported:         nodeResult.NodesImported,
			RelationshipsImported: relResult.RelationshipsImported,
			Errors:                append(nodeResult.Errors, relResult.Errors...),
		},
	}

	if opts.DryRun {
		return result, nil
	}

	validator := NewValidator(target, opts.TargetDialect, opts.SampleSize)
	validation, err := validator.Validate(ctx, nodes, rels)
	if err != nil {
		return result, err
	}
	result.Validation = validation

	return result, nil
}
