// Package auth implements the token service and store (A1/C4, §4.5):
// CSPRNG token generation, SHA-256 hashing at rest, and an atomically
// persisted single-JSON-file store, in the same tmp-then-rename idiom
// RepositoryStore uses for repository metadata.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

const storeVersion = "1.0"

// TokenStore persists StoredTokens as a single JSON file
// ({DATA_PATH}/tokens.json, §6.1) and keeps an in-memory cache for the
// hot validation path.
type TokenStore struct {
	path  string
	mu    sync.RWMutex
	cache map[string]types.StoredToken // tokenHash -> StoredToken
}

// NewTokenStore opens the store at path, populating the in-memory
// cache from disk. A missing file is treated as an empty, valid
// store and is written immediately.
func NewTokenStore(path string) (*TokenStore, error) {
	s := &TokenStore{path: path}
	file, err := s.readFile()
	if err != nil {
		return nil, err
	}
	s.cache = file.Tokens
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err := s.writeFile(file); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *TokenStore) readFile() (types.TokenStoreFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return types.TokenStoreFile{Version: storeVersion, Tokens: map[string]types.StoredToken{}}, nil
	}
	if err != nil {
		return types.TokenStoreFile{}, &errs.TokenStorageError{Op: "read", Cause: err, Recoverable: false}
	}

	var file types.TokenStoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return types.TokenStoreFile{}, &errs.TokenStorageError{Op: "read", Cause: err, Recoverable: false}
	}
	if file.Tokens == nil {
		file.Tokens = map[string]types.StoredToken{}
	}
	return file, nil
}

func (s *TokenStore) writeFile(file types.TokenStoreFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return &errs.TokenStorageError{Op: "write", Cause: err, Recoverable: false}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return &errs.TokenStorageError{Op: "write", Cause: err, Recoverable: true}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &errs.TokenStorageError{Op: "write", Cause: err, Recoverable: true}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &errs.TokenStorageError{Op: "write", Cause: err, Recoverable: true}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &errs.TokenStorageError{Op: "write", Cause: err, Recoverable: true}
	}
	return nil
}

// persist writes s.cache to disk under the lock and refreshes the
// cache from the just-persisted map, per §4.5 "writes always refresh
// the cache from the just-persisted map".
func (s *TokenStore) persist() error {
	file := types.TokenStoreFile{Version: storeVersion, Tokens: s.cache}
	if err := s.writeFile(file); err != nil {
		return err
	}
	s.cache = file.Tokens
	return nil
}

// Put inserts or replaces a stored token and persists.
func (s *TokenStore) Put(tok types.StoredToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[tok.TokenHash] = tok
	return s.persist()
}

// Get looks up a token by hash without touching disk.
func (s *TokenStore) Get(hash string) (types.StoredToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.cache[hash]
	return tok, ok
}

// Delete removes a token entirely (admin-only operation) and
// persists.
func (s *TokenStore) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, hash)
	return s.persist()
}

// UpdateUsage increments useCount and sets lastUsedAt for hash. Errors
// are the caller's to log-and-ignore per the fire-and-forget contract
// in §4.5; concurrent validations can lose increments and that race is
// accepted, not fixed, here.
func (s *TokenStore) UpdateUsage(hash string, lastUsedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.cache[hash]
	if !ok {
		return &errs.EntityNotFound{EntityType: "Token", Key: hash}
	}
	tok.Metadata.UseCount++
	tok.Metadata.LastUsedAt = &lastUsedAt
	s.cache[hash] = tok
	return s.persist()
}

// All returns every stored token (for findTokenByName/Prefix scans).
func (s *TokenStore) All() []types.StoredToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.StoredToken, 0, len(s.cache))
	for _, t := range s.cache {
		out = append(out, t)
	}
	return out
}
