package retry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncedBatcherClampsDelayToMinimum(t *testing.T) {
	b := NewDebouncedBatcher[int](time.Millisecond, 0, func([]int) {})
	assert.Equal(t, minDelay, b.delay)
}

func TestDebouncedBatcherFiresOnceWithFullBatch(t *testing.T) {
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	b := NewDebouncedBatcher[int](20*time.Millisecond, 0, func(items []int) {
		mu.Lock()
		got = append(got, items...)
		mu.Unlock()
		close(done)
	})

	b.Push(1)
	b.Push(2)
	b.Push(3)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestDebouncedBatcherFlushRunsHandlerSynchronously(t *testing.T) {
	var got []string
	b := NewDebouncedBatcher[string](time.Minute, 0, func(items []string) {
		got = append(got, items...)
	})

	b.Push("a")
	b.Push("b")
	b.Flush()

	require.Equal(t, []string{"a", "b"}, got)
}

func TestDebouncedBatcherCancelDropsPending(t *testing.T) {
	fired := false
	b := NewDebouncedBatcher[int](minDelay, 0, func([]int) { fired = true })

	b.Push(1)
	b.Cancel()

	time.Sleep(minDelay * 3)
	assert.False(t, fired)
}

func TestDebouncedBatcherRespectsMaxWaitCeiling(t *testing.T) {
	var mu sync.Mutex
	fireCount := 0
	done := make(chan struct{})

	b := NewDebouncedBatcher[int](minDelay, 150*time.Millisecond, func(items []int) {
		mu.Lock()
		fireCount++
		mu.Unlock()
		close(done)
	})

	start := time.Now()
	b.Push(1)
	for i := 0; i < 10; i++ {
		time.Sleep(minDelay / 2)
		b.Push(i)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never fired within maxWait")
	}
	elapsed := time.Since(start)

	assert.LessOrEqual(t, elapsed, 400*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fireCount)
}
