// Package metrics implements the bounded in-process metrics ring
// (S1, §4.7): a fixed-capacity buffer of GraphQueryRecord with O(1)
// record/evict and on-demand, read-only aggregation.
package metrics

import (
	"sync"
	"time"

	"github.com/graphindex/core/internal/types"
)

const defaultCapacity = 100

// trendWindow is the lookback used by Aggregate's trend computation.
const trendWindow = 7 * 24 * time.Hour

// Ring is a fixed-capacity, oldest-first-eviction buffer of
// GraphQueryRecord. Safe for concurrent use.
type Ring struct {
	mu       sync.Mutex
	records  []types.GraphQueryRecord
	capacity int
	next     int
	size     int
}

// NewRing builds a Ring with the given capacity, defaulting to 100
// when capacity <= 0.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Ring{records: make([]types.GraphQueryRecord, capacity), capacity: capacity}
}

// Record appends rec, evicting the oldest entry if the ring is full.
// O(1).
func (r *Ring) Record(rec types.GraphQueryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = rec
	r.next = (r.next + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// snapshot returns a copy of the currently held records, oldest first.
func (r *Ring) snapshot() []types.GraphQueryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.GraphQueryRecord, r.size)
	if r.size < r.capacity {
		copy(out, r.records[:r.size])
		return out
	}
	copy(out, r.records[r.next:])
	copy(out[r.capacity-r.next:], r.records[:r.next])
	return out
}

// QueryTypeStats is the per-queryType aggregate reported by Aggregate.
type QueryTypeStats struct {
	Count          int
	AvgMs          float64
	MaxMs          int64
	MinMs          int64
	CacheHitRate   float64
	AvgResultCount float64
	ErrorCount     int
}

// Aggregation is the full on-demand report computed from the ring's
// current contents.
type Aggregation struct {
	TotalCount int
	ByType     map[types.QueryType]QueryTypeStats
	TrendCount int // records within the last 7 days
}

// Aggregate computes totals, per-queryType stats, and a 7-day trend
// count. It never mutates the ring.
func Aggregate(r *Ring, now time.Time) Aggregation {
	records := r.snapshot()

	byType := make(map[types.QueryType]*queryTypeAccum)
	cutoff := now.Add(-trendWindow)
	trend := 0

	for _, rec := range records {
		acc, ok := byType[rec.QueryType]
		if !ok {
			acc = &queryTypeAccum{minMs: rec.DurationMs}
			byType[rec.QueryType] = acc
		}
		acc.count++
		acc.sumMs += rec.DurationMs
		if rec.DurationMs > acc.maxMs {
			acc.maxMs = rec.DurationMs
		}
		if rec.DurationMs < acc.minMs {
			acc.minMs = rec.DurationMs
		}
		if rec.FromCache {
			acc.cacheHits++
		}
		acc.sumResults += rec.ResultCount
		if rec.Error != "" {
			acc.errors++
		}
		if rec.Timestamp.After(cutoff) {
			trend++
		}
	}

	out := Aggregation{TotalCount: len(records), ByType: make(map[types.QueryType]QueryTypeStats, len(byType)), TrendCount: trend}
	for qt, acc := range byType {
		out.ByType[qt] = QueryTypeStats{
			Count:          acc.count,
			AvgMs:          float64(acc.sumMs) / float64(acc.count),
			MaxMs:          acc.maxMs,
			MinMs:          acc.minMs,
			CacheHitRate:   float64(acc.cacheHits) / float64(acc.count),
			AvgResultCount: float64(acc.sumResults) / float64(acc.count),
			ErrorCount:     acc.errors,
		}
	}
	return out
}

type queryTypeAccum struct {
	count      int
	sumMs      int64
	maxMs      int64
	minMs      int64
	cacheHits  int
	sumResults int
	errors     int
}
