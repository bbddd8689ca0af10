package coordinator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/graphindex/core/internal/chunkscan"
	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/gitscan"
	"github.com/graphindex/core/internal/metrics"
	"github.com/graphindex/core/internal/pipeline"
	"github.com/graphindex/core/internal/types"
)

// CoordinatorStatus is the outcome of one updateRepository call.
type CoordinatorStatus string

const (
	StatusNoChanges CoordinatorStatus = "no_changes"
	StatusUpdated   CoordinatorStatus = "updated"
	StatusFailed    CoordinatorStatus = "failed"
)

// CoordinatorResult is the §4.2 return value.
type CoordinatorResult struct {
	Status     CoordinatorStatus
	CommitSha  string
	Stats      pipeline.UpdateStats
	Errors     []string
	DurationMs int64
}

// Coordinator drives the update algorithm in §4.2 for one process.
// Per-repository writes are serialised by the caller; the coordinator
// itself assumes no parallel writers on the same repository (§5).
type Coordinator struct {
	repos        *RepositoryStore
	pipeline     *pipeline.Pipeline
	historyPath  func(repository string) string
	includeExts  map[string]bool
	excludeGlobs []string
	eventLogger  *metrics.EventLogger
}

// WithEventLogger attaches the cross-repository JSONL event stream
// every update/index run also reports to, alongside the per-repository
// typed history file appendHistory writes.
func (c *Coordinator) WithEventLogger(l *metrics.EventLogger) *Coordinator {
	c.eventLogger = l
	return c
}

// New builds a Coordinator. historyDir is the directory where
// per-repository update history JSONL files are appended.
func New(repos *RepositoryStore, pl *pipeline.Pipeline, historyDir string, includeExts map[string]bool, excludeGlobs []string) *Coordinator {
	return &Coordinator{
		repos:    repos,
		pipeline: pl,
		historyPath: func(repository string) string {
			return historyDir + "/" + repository + ".history.jsonl"
		},
		includeExts:  includeExts,
		excludeGlobs: excludeGlobs,
	}
}

// UpdateRepository implements the §4.2 algorithm.
func (c *Coordinator) UpdateRepository(ctx context.Context, name string) (CoordinatorResult, error) {
	start := time.Now()

	info, err := c.repos.Get(name)
	if err != nil {
		return CoordinatorResult{Status: StatusFailed}, err
	}
	if info.Status != types.RepositoryReady {
		return CoordinatorResult{Status: StatusFailed}, &errs.ValidationError{
			Field: "status", Message: "repository is not ready: " + string(info.Status),
		}
	}

	now := time.Now()
	if _, err := c.repos.Update(name, func(r *types.RepositoryInfo) {
		r.UpdateInProgress = true
		r.UpdateStartedAt = &now
	}); err != nil {
		return CoordinatorResult{Status: StatusFailed}, err
	}

	currentHead, err := gitscan.Head(info.LocalPath)
	if err != nil {
		c.clearMarker(name)
		return CoordinatorResult{Status: StatusFailed}, err
	}

	if currentHead == info.LastIndexedCommitSha {
		c.clearMarker(name)
		return CoordinatorResult{Status: StatusNoChanges, CommitSha: currentHead, DurationMs: time.Since(start).Milliseconds()}, nil
	}

	changes, err := gitscan.Diff(info.LocalPath, info.LastIndexedCommitSha, currentHead)
	if err != nil {
		c.clearMarker(name)
		return CoordinatorResult{Status: StatusFailed}, err
	}

	result, err := c.pipeline.ProcessChanges(ctx, changes, pipeline.UpdateOptions{
		Repository:        name,
		LocalPath:         info.LocalPath,
		CollectionName:    name,
		IncludeExtensions: c.includeExts,
		ExcludePatterns:   c.excludeGlobs,
	})
	if err != nil {
		c.clearMarker(name)
		return CoordinatorResult{Status: StatusFailed}, err
	}

	status := types.UpdateSuccess
	if len(result.Errors) > 0 {
		status = types.UpdatePartial
	}
	entry := types.UpdateHistoryEntry{
		Timestamp:      time.Now(),
		PreviousCommit: info.LastIndexedCommitSha,
		NewCommit:      currentHead,
		FilesAdded:     result.Stats.FilesAdded,
		FilesModified:  result.Stats.FilesModified,
		FilesDeleted:   result.Stats.FilesDeleted,
		ChunksUpserted: result.Stats.ChunksUpserted,
		ChunksDeleted:  result.Stats.ChunksDeleted,
		DurationMs:     result.DurationMs,
		ErrorCount:     len(result.Errors),
		Status:         status,
	}
	if err := c.appendHistory(name, entry); err != nil {
		result.Errors = append(result.Errors, "(history append): "+err.Error())
	}
	if c.eventLogger != nil {
		c.eventLogger.LogIndexUpdate(name, result.Stats.FilesAdded+result.Stats.FilesModified+result.Stats.FilesDeleted, result.Stats.ChunksUpserted+result.Stats.ChunksDeleted, string(status))
	}

	nowIndexed := time.Now()
	if _, err := c.repos.Update(name, func(r *types.RepositoryInfo) {
		r.LastIndexedCommitSha = currentHead
		r.LastIncrementalUpdateAt = &nowIndexed
		r.IncrementalUpdateCount++
		r.FileCount += result.Stats.FilesAdded - result.Stats.FilesDeleted
		r.ChunkCount += result.Stats.ChunksUpserted - result.Stats.ChunksDeleted
		r.UpdateInProgress = false
		r.UpdateStartedAt = nil
	}); err != nil {
		return CoordinatorResult{Status: StatusFailed}, err
	}

	return CoordinatorResult{
		Status:     StatusUpdated,
		CommitSha:  currentHead,
		Stats:      result.Stats,
		Errors:     result.Errors,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (c *Coordinator) clearMarker(name string) {
	c.repos.Update(name, func(r *types.RepositoryInfo) {
		r.UpdateInProgress = false
		r.UpdateStartedAt = nil
	})
}

// IndexOptions configures a repository's first indexing pass (the
// `index <url>` CLI verb), as distinct from UpdateRepository's
// incremental diff-based pass.
type IndexOptions struct {
	URL                 string
	Name                string // derived from URL when empty
	Branch              string
	LocalPath           string
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int
}

var repoNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// DeriveRepositoryName derives a RepositoryInfo.name from a clone URL,
// the same way the spec's data model requires it: the last path
// segment, with a trailing ".git" and any characters outside
// [A-Za-z0-9_-] stripped.
func DeriveRepositoryName(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(url, "/"), ".git")
	base := trimmed
	if idx := strings.LastIndexAny(trimmed, "/:"); idx != -1 {
		base = trimmed[idx+1:]
	}
	return repoNameSanitizer.ReplaceAllString(base, "-")
}

// IndexRepository clones url, walks every matching file as a fresh
// addition, and runs it through the same pipeline UpdateRepository
// uses for incremental changes — an initial index is just the limit
// case of an update with no prior commit to diff against.
func (c *Coordinator) IndexRepository(ctx context.Context, opts IndexOptions) (CoordinatorResult, error) {
	start := time.Now()

	name := opts.Name
	if name == "" {
		name = DeriveRepositoryName(opts.URL)
	}
	if name == "" {
		return CoordinatorResult{Status: StatusFailed}, &errs.ValidationError{Field: "url", Message: "could not derive a repository name from " + opts.URL}
	}
	if _, err := c.repos.Get(name); err == nil {
		return CoordinatorResult{Status: StatusFailed}, &errs.ValidationError{Field: "name", Message: "repository already indexed: " + name}
	}

	now := time.Now()
	if err := c.repos.Put(types.RepositoryInfo{
		Name: name, URL: opts.URL, Branch: opts.Branch, Status: types.RepositoryIndexing,
		LocalPath: opts.LocalPath, UpdateInProgress: true, UpdateStartedAt: &now,
	}); err != nil {
		return CoordinatorResult{Status: StatusFailed}, err
	}

	commit, err := gitscan.Clone(opts.URL, opts.LocalPath, opts.Branch)
	if err != nil {
		c.markFailed(name, err)
		return CoordinatorResult{Status: StatusFailed}, err
	}

	walker := chunkscan.NewWalker(nil, c.excludeGlobs)
	var changes []types.FileChange
	walkErr := walker.Walk(opts.LocalPath, func(absPath string) error {
		rel, relErr := filepath.Rel(opts.LocalPath, absPath)
		if relErr != nil {
			return relErr
		}
		changes = append(changes, types.FileChange{Path: filepath.ToSlash(rel), Status: types.ChangeAdded})
		return nil
	})
	if walkErr != nil {
		c.markFailed(name, walkErr)
		return CoordinatorResult{Status: StatusFailed}, walkErr
	}

	result, err := c.pipeline.ProcessChanges(ctx, changes, pipeline.UpdateOptions{
		Repository:        name,
		LocalPath:         opts.LocalPath,
		CollectionName:    name,
		IncludeExtensions: c.includeExts,
		ExcludePatterns:   c.excludeGlobs,
	})
	if err != nil {
		c.markFailed(name, err)
		return CoordinatorResult{Status: StatusFailed}, err
	}

	status := types.UpdateSuccess
	if len(result.Errors) > 0 {
		status = types.UpdatePartial
	}
	entry := types.UpdateHistoryEntry{
		Timestamp:      time.Now(),
		NewCommit:      commit,
		FilesAdded:     result.Stats.FilesAdded,
		ChunksUpserted: result.Stats.ChunksUpserted,
		DurationMs:     result.DurationMs,
		ErrorCount:     len(result.Errors),
		Status:         status,
	}
	if err := c.appendHistory(name, entry); err != nil {
		result.Errors = append(result.Errors, "(history append): "+err.Error())
	}
	if c.eventLogger != nil {
		c.eventLogger.LogIndexUpdate(name, result.Stats.FilesAdded, result.Stats.ChunksUpserted, string(status))
	}

	nowIndexed := time.Now()
	updated, err := c.repos.Update(name, func(r *types.RepositoryInfo) {
		r.Status = types.RepositoryReady
		r.LastIndexedCommitSha = commit
		r.LastIndexedAt = &nowIndexed
		r.FileCount = result.Stats.FilesAdded
		r.ChunkCount = result.Stats.ChunksUpserted
		r.IndexDurationMs = time.Since(start).Milliseconds()
		r.EmbeddingProvider = opts.EmbeddingProvider
		r.EmbeddingModel = opts.EmbeddingModel
		r.EmbeddingDimensions = opts.EmbeddingDimensions
		r.UpdateInProgress = false
		r.UpdateStartedAt = nil
	})
	if err != nil {
		return CoordinatorResult{Status: StatusFailed}, err
	}

	return CoordinatorResult{
		Status:     StatusUpdated,
		CommitSha:  updated.LastIndexedCommitSha,
		Stats:      result.Stats,
		Errors:     result.Errors,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (c *Coordinator) markFailed(name string, cause error) {
	c.repos.Update(name, func(r *types.RepositoryInfo) {
		r.Status = types.RepositoryError
		r.ErrorMessage = cause.Error()
		r.UpdateInProgress = false
		r.UpdateStartedAt = nil
	})
}

func (c *Coordinator) appendHistory(repository string, entry types.UpdateHistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(c.historyPath(repository), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}
