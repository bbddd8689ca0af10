// Package pipeline implements the incremental update pipeline (C1,
// §4.1): filtering, per-file chunking, cross-file embedding batching,
// and a single vector-store upsert call per processChanges run.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/graphindex/core/internal/chunkscan"
	"github.com/graphindex/core/internal/embedding"
	"github.com/graphindex/core/internal/types"
	"github.com/graphindex/core/internal/vectorstore"
)

// UpdateOptions configures one processChanges call.
type UpdateOptions struct {
	Repository        string
	LocalPath         string
	CollectionName    string
	IncludeExtensions map[string]bool
	ExcludePatterns   []string
}

// UpdateStats tallies the outcome of a processChanges run.
type UpdateStats struct {
	FilesAdded     int
	FilesModified  int
	FilesDeleted   int
	ChunksUpserted int
	ChunksDeleted  int
}

// UpdateResult is the return value of ProcessChanges.
type UpdateResult struct {
	Stats      UpdateStats
	Errors     []string
	DurationMs int64
}

// Pipeline wires a chunker, embedding client, and vector store
// together. It holds no per-call state; ProcessChanges is safe to
// call repeatedly and concurrently across different repositories.
type Pipeline struct {
	chunker  *chunkscan.Chunker
	embedder *embedding.Client
	store    vectorstore.Store
}

// New builds a Pipeline over the given embedding client and vector
// store.
func New(embedder *embedding.Client, store vectorstore.Store) *Pipeline {
	return &Pipeline{
		chunker:  chunkscan.NewChunker(),
		embedder: embedder,
		store:    store,
	}
}

// ProcessChanges implements the §4.1 contract.
func (p *Pipeline) ProcessChanges(ctx context.Context, changes []types.FileChange, opts UpdateOptions) (UpdateResult, error) {
	start := time.Now()
	result := UpdateResult{}

	matcher := chunkscan.NewWalker(nil, opts.ExcludePatterns)

	var pending []types.FileChunk
	for _, change := range changes {
		if !includesExtension(opts.IncludeExtensions, change.Path) {
			continue
		}
		if matcher.IsExcluded(filepath.ToSlash(change.Path)) {
			continue
		}

		switch change.Status {
		case types.ChangeAdded:
			chunks, err := p.chunker.ChunkFile(opts.Repository, change.Path, filepath.Join(opts.LocalPath, change.Path))
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", change.Path, err))
				continue
			}
			pending = append(pending, chunks...)
			result.Stats.FilesAdded++

		case types.ChangeModified:
			deleted, err := p.store.DeleteByFilter(ctx, opts.CollectionName, map[string]interface{}{
				"repository": opts.Repository, "file_path": change.Path,
			})
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", change.Path, err))
				continue
			}
			result.Stats.ChunksDeleted += deleted
			chunks, err := p.chunker.ChunkFile(opts.Repository, change.Path, filepath.Join(opts.LocalPath, change.Path))
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", change.Path, err))
				continue
			}
			pending = append(pending, chunks...)
			result.Stats.FilesModified++

		case types.ChangeDeleted:
			deleted, err := p.store.DeleteByFilter(ctx, opts.CollectionName, map[string]interface{}{
				"repository": opts.Repository, "file_path": change.Path,
			})
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", change.Path, err))
				continue
			}
			result.Stats.ChunksDeleted += deleted
			result.Stats.FilesDeleted++

		case types.ChangeRenamed:
			if change.PreviousPath == "" {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: renamed change missing previousPath", change.Path))
				continue
			}
			deleted, err := p.store.DeleteByFilter(ctx, opts.CollectionName, map[string]interface{}{
				"repository": opts.Repository, "file_path": change.PreviousPath,
			})
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", change.Path, err))
				continue
			}
			result.Stats.ChunksDeleted += deleted
			chunks, err := p.chunker.ChunkFile(opts.Repository, change.Path, filepath.Join(opts.LocalPath, change.Path))
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", change.Path, err))
				continue
			}
			pending = append(pending, chunks...)
			result.Stats.FilesModified++

		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: unknown change status, skipped", change.Path))
		}
	}

	if len(pending) > 0 {
		if err := p.embedAndStore(ctx, opts, pending, &result); err != nil {
			result.Errors = append(result.Errors, "(batch embedding/storage): "+err.Error())
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

func (p *Pipeline) embedAndStore(ctx context.Context, opts UpdateOptions, chunks []types.FileChunk, result *UpdateResult) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := p.embedder.EmbedBatched(ctx, texts)
	if err != nil {
		return err
	}

	now := time.Now()
	docs := make([]types.DocumentInput, len(chunks))
	for i, c := range chunks {
		docs[i] = types.DocumentInput{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: vectors[i],
			Metadata: types.DocumentMetadata{
				FilePath:       c.FilePath,
				Repository:     c.Repository,
				ChunkIndex:     c.ChunkIndex,
				TotalChunks:    c.TotalChunks,
				ChunkStartLine: c.StartLine,
				ChunkEndLine:   c.EndLine,
				FileExtension:  c.Metadata.Extension,
				FileSizeBytes:  c.Metadata.FileSizeBytes,
				ContentHash:    c.Metadata.ContentHash,
				IndexedAt:      now,
				FileModifiedAt: c.Metadata.FileModifiedAt,
			},
		}
	}

	if err := p.store.Upsert(ctx, opts.CollectionName, docs); err != nil {
		return err
	}
	result.Stats.ChunksUpserted += len(docs)
	return nil
}

func includesExtension(allowed map[string]bool, path string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return allowed[ext]
}
