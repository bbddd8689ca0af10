// Package graphingest implements G3 Graph Ingestion: it parses a
// repository's source files with internal/parser and upserts the
// resulting Repository/File/Function/Class/Module/Concept nodes and
// their edges into a graph.Adapter. It is the "separately, G3 can
// reparse the repository into graph nodes and edges" step in the
// control flow overview (§2) — a distinct pass from the vector-store
// update pipeline, sharing only the parser and the chunk scanner's
// walk.
package graphingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/graphindex/core/internal/chunkscan"
	"github.com/graphindex/core/internal/graph"
	"github.com/graphindex/core/internal/parser"
	"github.com/graphindex/core/internal/pattern"
	"github.com/graphindex/core/internal/types"
)

func contentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Stats tallies one Ingest run.
type Stats struct {
	FilesProcessed       int
	FunctionsUpserted    int
	ClassesUpserted      int
	ModulesUpserted      int
	ConceptsUpserted     int
	RelationshipsCreated int
	Errors               []string
}

// Ingester drives one repository's reparse into a graph.Adapter.
// Like the pipeline, it holds no per-call state across repositories;
// Ingest is safe to call repeatedly across different repositories.
type Ingester struct {
	adapter  graph.Adapter
	walker   *chunkscan.Walker
	detector *pattern.Detector
	logger   *slog.Logger
}

// New builds an Ingester over adapter. logger defaults to
// slog.Default() when nil, matching search.NewHandler's precedent.
func New(adapter graph.Adapter, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		adapter:  adapter,
		walker:   chunkscan.NewWalker(nil, nil),
		detector: pattern.NewDetector(pattern.DetectorConfig{}),
		logger:   logger,
	}
}

// symbolRef identifies one upserted Function/Class node, keyed so a
// second pass can resolve CALLS/EXTENDS targets against nodes minted
// while walking other files, without a second adapter round trip per
// candidate.
type symbolRef struct {
	id    string
	label string
}

// pendingRel is a CALLS/EXTENDS edge whose target may not have been
// upserted yet when its source file was parsed.
type pendingRel struct {
	sourceNodeID string
	rel          parser.Relationship
}

// Ingest walks repoPath, parses every recognised source file, and
// upserts the repository's graph entities and relationships (§3.4,
// §3.5). It returns partial Stats even on a mid-walk error, since a
// single bad file must never abort the whole reparse (same
// per-item-isolation policy as the update pipeline, §7).
func (ing *Ingester) Ingest(ctx context.Context, repository, repoPath string) (Stats, error) {
	stats := Stats{}

	repoNode, err := ing.adapter.UpsertNode(ctx, types.Node{
		Labels: []string{string(types.LabelRepository)},
		Props:  map[string]interface{}{"name": repository, "url": "", "status": string(types.RepositoryReady)},
	})
	if err != nil {
		return stats, err
	}

	var allSymbols []parser.Symbol
	symbolNodes := map[string]symbolRef{} // name -> ref, last-writer-wins within the repo
	fileNodes := map[string]string{}      // relPath -> File node id, for concept REFERENCES wiring
	var pending []pendingRel

	walkErr := ing.walker.Walk(repoPath, func(absPath string) error {
		relPath, relErr := filepath.Rel(repoPath, absPath)
		if relErr != nil {
			stats.Errors = append(stats.Errors, absPath+": "+relErr.Error())
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		filePending, fileErr := ing.ingestFile(ctx, repository, relPath, absPath, repoNode.ID, &stats, &allSymbols, symbolNodes, fileNodes)
		if fileErr != nil {
			stats.Errors = append(stats.Errors, relPath+": "+fileErr.Error())
			return nil
		}
		pending = append(pending, filePending...)
		return nil
	})
	if walkErr != nil {
		return stats, walkErr
	}

	for _, p := range pending {
		if err := ing.resolvePendingRel(ctx, p, symbolNodes, &stats); err != nil {
			stats.Errors = append(stats.Errors, "(relationship resolution): "+err.Error())
		}
	}

	if err := ing.ingestConcepts(ctx, allSymbols, fileNodes, &stats); err != nil {
		stats.Errors = append(stats.Errors, "(concept detection): "+err.Error())
	}

	return stats, nil
}

func (ing *Ingester) ingestFile(
	ctx context.Context,
	repository, relPath, absPath, repoNodeID string,
	stats *Stats,
	allSymbols *[]parser.Symbol,
	symbolNodes map[string]symbolRef,
	fileNodes map[string]string,
) ([]pendingRel, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	fileNode, err := ing.adapter.UpsertNode(ctx, types.Node{
		Labels: []string{string(types.LabelFile)},
		Props: map[string]interface{}{
			"path":       relPath,
			"repository": repository,
			"extension":  extOf(relPath),
			"hash":       contentHash(content),
		},
	})
	if err != nil {
		return nil, err
	}
	stats.FilesProcessed++
	fileNodes[relPath] = fileNode.ID

	if _, err := ing.adapter.CreateRelationship(ctx, fileNode.ID, repoNodeID, string(types.RelBelongsTo), nil); err != nil {
		return nil, err
	}
	stats.RelationshipsCreated++

	lang, ok := parser.DetectLanguage(relPath)
	if !ok {
		return nil, nil
	}
	p, err := parser.NewParser(lang)
	if err != nil {
		return nil, err
	}

	result, err := p.ParseWithRelationships(content, relPath)
	if err != nil {
		return nil, err
	}

	var pending []pendingRel
	for _, sym := range result.Symbols {
		label := sym.Kind.GraphLabel()
		if label == "" {
			continue
		}
		node, err := ing.adapter.UpsertNode(ctx, sym.ToGraphNode(repository))
		if err != nil {
			return nil, err
		}
		if label == string(types.LabelFunction) {
			stats.FunctionsUpserted++
		} else {
			stats.ClassesUpserted++
		}

		if _, err := ing.adapter.CreateRelationship(ctx, fileNode.ID, node.ID, string(types.RelDefines), nil); err != nil {
			return nil, err
		}
		stats.RelationshipsCreated++

		symbolNodes[sym.Name] = symbolRef{id: node.ID, label: label}
		*allSymbols = append(*allSymbols, sym)
	}

	for _, rel := range result.Relationships {
		switch rel.Kind {
		case parser.RelationshipImports:
			if err := ing.ingestImport(ctx, fileNode.ID, rel, stats); err != nil {
				return nil, err
			}
		case parser.RelationshipCalls, parser.RelationshipExtends:
			sourceID := fileNode.ID
			if ref, ok := symbolNodes[rel.SourceName]; ok {
				sourceID = ref.id
			}
			pending = append(pending, pendingRel{sourceNodeID: sourceID, rel: rel})
		}
	}

	return pending, nil
}

func (ing *Ingester) ingestImport(ctx context.Context, fileNodeID string, rel parser.Relationship, stats *Stats) error {
	if rel.TargetPath == "" {
		return nil
	}
	moduleNode, err := ing.adapter.UpsertNode(ctx, types.Node{
		Labels: []string{string(types.LabelModule)},
		Props: map[string]interface{}{
			"name": rel.TargetPath,
			"type": moduleKind(rel.TargetPath),
		},
	})
	if err != nil {
		return err
	}
	stats.ModulesUpserted++

	if _, err := ing.adapter.CreateRelationship(ctx, fileNodeID, moduleNode.ID, string(types.RelImports), nil); err != nil {
		return err
	}
	stats.RelationshipsCreated++
	return nil
}

// resolvePendingRel looks the call/extends target up by name among
// symbols upserted anywhere in the repository during this Ingest run.
// Targets outside the repository (stdlib calls, vendored code) are
// skipped without error: this is best-effort linking, not a closed
// resolver.
func (ing *Ingester) resolvePendingRel(ctx context.Context, p pendingRel, symbolNodes map[string]symbolRef, stats *Stats) error {
	targetName := p.rel.TargetName
	if targetName == "" {
		return nil
	}
	target, ok := symbolNodes[targetName]
	if !ok {
		return nil
	}

	relType := p.rel.Kind.GraphType()

	if _, err := ing.adapter.CreateRelationship(ctx, p.sourceNodeID, target.id, string(relType), nil); err != nil {
		return err
	}
	stats.RelationshipsCreated++
	return nil
}

// ingestConcepts upserts one Concept node per detected pattern and
// links it back to the files that exhibit it with a REFERENCES edge
// (fileNodes[member] -> concept), so getContext's "documentation"
// facet (§4.3 getContext) has something to traverse instead of
// leaving Concept nodes as unreachable orphans.
func (ing *Ingester) ingestConcepts(ctx context.Context, symbols []parser.Symbol, fileNodes map[string]string, stats *Stats) error {
	patterns := ing.detector.Detect(symbols)
	for _, p := range patterns {
		conceptNode, err := ing.adapter.UpsertNode(ctx, types.Node{
			Labels: []string{string(types.LabelConcept)},
			Props: map[string]interface{}{
				"name":        p.Name,
				"description": p.Description,
				"confidence":  p.Confidence,
			},
		})
		if err != nil {
			return err
		}
		stats.ConceptsUpserted++

		for _, member := range p.Members {
			fileID, ok := fileNodes[member]
			if !ok {
				continue
			}
			if _, err := ing.adapter.CreateRelationship(ctx, fileID, conceptNode.ID, string(types.RelReferences), nil); err != nil {
				return err
			}
			stats.RelationshipsCreated++
		}
	}
	return nil
}

var jsBuiltins = map[string]bool{
	"fs": true, "path": true, "os": true, "http": true, "https": true,
	"crypto": true, "util": true, "events": true, "stream": true,
}

var pyBuiltins = map[string]bool{
	"os": true, "sys": true, "json": true, "re": true, "typing": true,
	"collections": true, "itertools": true, "functools": true, "pathlib": true,
}

// moduleKind classifies an import target the same way the teacher's
// module resolver distinguished filesystem-relative imports from
// package imports, generalized to the §3.4 Module.type vocabulary.
func moduleKind(target string) string {
	if strings.HasPrefix(target, ".") || strings.HasPrefix(target, "/") {
		return "internal"
	}
	if jsBuiltins[target] || pyBuiltins[target] {
		return "builtin"
	}
	return "npm"
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
