// Package coordinator implements the update coordinator (§4.2) and
// interrupted-update detection/recovery (§4.8): it owns the
// persisted RepositoryInfo registry and drives the pipeline/gitscan
// packages to bring one repository's index up to date with HEAD.
package coordinator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

// RepositoryStore persists RepositoryInfo records as a single JSON
// file, written atomically via a temp-file-then-rename, the same
// crash-safety idiom the auth token store uses for its own state
// file — no pack library offers a better single-file JSON persistence
// primitive than the stdlib os/json combination already in play
// elsewhere in this codebase.
type RepositoryStore struct {
	path string
	mu   sync.Mutex
}

// NewRepositoryStore opens (without yet reading) the store backed by
// path.
func NewRepositoryStore(path string) *RepositoryStore {
	return &RepositoryStore{path: path}
}

func (s *RepositoryStore) load() (map[string]types.RepositoryInfo, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]types.RepositoryInfo{}, nil
	}
	if err != nil {
		return nil, &errs.OperationError{Op: "repository_store_load", Cause: err, Retry: false}
	}

	var repos map[string]types.RepositoryInfo
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, &errs.OperationError{Op: "repository_store_load", Cause: err, Retry: false}
	}
	return repos, nil
}

func (s *RepositoryStore) save(repos map[string]types.RepositoryInfo) error {
	data, err := json.MarshalIndent(repos, "", "  ")
	if err != nil {
		return &errs.OperationError{Op: "repository_store_save", Cause: err, Retry: false}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".repositories-*.tmp")
	if err != nil {
		return &errs.OperationError{Op: "repository_store_save", Cause: err, Retry: false}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &errs.OperationError{Op: "repository_store_save", Cause: err, Retry: false}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &errs.OperationError{Op: "repository_store_save", Cause: err, Retry: false}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &errs.OperationError{Op: "repository_store_save", Cause: err, Retry: false}
	}
	return nil
}

// Get returns the named repository's info, or EntityNotFound.
func (s *RepositoryStore) Get(name string) (types.RepositoryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repos, err := s.load()
	if err != nil {
		return types.RepositoryInfo{}, err
	}
	info, ok := repos[name]
	if !ok {
		return types.RepositoryInfo{}, &errs.EntityNotFound{EntityType: "Repository", Key: name}
	}
	return info, nil
}

// List returns every stored RepositoryInfo.
func (s *RepositoryStore) List() ([]types.RepositoryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repos, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]types.RepositoryInfo, 0, len(repos))
	for _, r := range repos {
		out = append(out, r)
	}
	return out, nil
}

// Put inserts or replaces a RepositoryInfo.
func (s *RepositoryStore) Put(info types.RepositoryInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repos, err := s.load()
	if err != nil {
		return err
	}
	repos[info.Name] = info
	return s.save(repos)
}

// Delete removes the named repository's record. It is not an error to
// delete a repository that was never registered.
func (s *RepositoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repos, err := s.load()
	if err != nil {
		return err
	}
	delete(repos, name)
	return s.save(repos)
}

// Update loads the named repository, applies mutate, and persists the
// result atomically under the store's lock.
func (s *RepositoryStore) Update(name string, mutate func(*types.RepositoryInfo)) (types.RepositoryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repos, err := s.load()
	if err != nil {
		return types.RepositoryInfo{}, err
	}
	info, ok := repos[name]
	if !ok {
		return types.RepositoryInfo{}, &errs.EntityNotFound{EntityType: "Repository", Key: name}
	}
	mutate(&info)
	repos[name] = info
	if err := s.save(repos); err != nil {
		return types.RepositoryInfo{}, err
	}
	return info, nil
}
