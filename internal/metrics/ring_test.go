package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/types"
)

func TestNewRingDefaultsCapacity(t *testing.T) {
	r := NewRing(0)
	assert.Equal(t, defaultCapacity, r.capacity)
}

func TestRingEvictsOldestWhenFull(t *testing.T) {
	r := NewRing(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		r.Record(types.GraphQueryRecord{QueryType: types.QueryDependencies, Timestamp: now, ResultCount: i})
	}

	snap := r.snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 2, snap[0].ResultCount)
	assert.Equal(t, 3, snap[1].ResultCount)
	assert.Equal(t, 4, snap[2].ResultCount)
}

func TestAggregateComputesPerQueryTypeStats(t *testing.T) {
	r := NewRing(10)
	now := time.Now()

	r.Record(types.GraphQueryRecord{QueryType: types.QueryDependencies, Timestamp: now, DurationMs: 10, ResultCount: 2, FromCache: false})
	r.Record(types.GraphQueryRecord{QueryType: types.QueryDependencies, Timestamp: now, DurationMs: 20, ResultCount: 4, FromCache: true})
	r.Record(types.GraphQueryRecord{QueryType: types.QueryDependencies, Timestamp: now, DurationMs: 0, ResultCount: 0, Error: "boom"})

	agg := Aggregate(r, now)
	assert.Equal(t, 3, agg.TotalCount)

	stats := agg.ByType[types.QueryDependencies]
	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 10.0, stats.AvgMs, 0.001)
	assert.Equal(t, int64(20), stats.MaxMs)
	assert.Equal(t, int64(0), stats.MinMs)
	assert.InDelta(t, 1.0/3.0, stats.CacheHitRate, 0.001)
	assert.Equal(t, 1, stats.ErrorCount)
}

func TestAggregateTrendCountExcludesOldRecords(t *testing.T) {
	r := NewRing(10)
	now := time.Now()
	r.Record(types.GraphQueryRecord{QueryType: types.QueryPath, Timestamp: now.Add(-10 * 24 * time.Hour)})
	r.Record(types.GraphQueryRecord{QueryType: types.QueryPath, Timestamp: now.Add(-1 * time.Hour)})

	agg := Aggregate(r, now)
	assert.Equal(t, 1, agg.TrendCount)
}

func TestAggregateOnEmptyRing(t *testing.T) {
	r := NewRing(5)
	agg := Aggregate(r, time.Now())
	assert.Equal(t, 0, agg.TotalCount)
	assert.Empty(t, agg.ByType)
}
