package graphquery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheEntry is what the LRU stores: the raw result plus the
// repository it references, so invalidation can target one repo
// without decoding every key.
type cacheEntry struct {
	result     interface{}
	repository string
}

// resultCache is the service's in-process LRU+TTL cache keyed by
// (methodName, normalised-args-hash), §4.4 "Caching". Wrapping
// hashicorp/golang-lru's expirable LRU (used elsewhere in the example
// corpus for exactly this TTL+eviction shape) instead of hand-rolling
// one.
type resultCache struct {
	lru *lru.LRU[string, cacheEntry]
	mu  sync.Mutex
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	return &resultCache{lru: lru.NewLRU[string, cacheEntry](size, nil, ttl)}
}

// key hashes the method name and normalised args into one cache key.
// Every boolean argument must participate via normalizeArgs so that
// two calls differing only in a flag (e.g. includeTransitive) hash
// distinctly.
func cacheKey(method string, args map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(normalizeArgs(args)))
	return method + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// normalizeArgs renders args as a deterministically ordered string so
// identical argument sets always hash the same regardless of map
// iteration order, and differing flags always hash differently.
func normalizeArgs(args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		fmt.Fprintf(&sb, "%v", args[k])
		sb.WriteByte(';')
	}
	return sb.String()
}

func (c *resultCache) get(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

func (c *resultCache) put(key string, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry)
}

// clearForRepository removes every cached entry whose normalised args
// referenced repository, implementing clearCacheForRepository(name).
func (c *resultCache) clearForRepository(repository string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		entry, ok := c.lru.Peek(k)
		if ok && entry.repository == repository {
			c.lru.Remove(k)
		}
	}
}
