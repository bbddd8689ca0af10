package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		out = append(out, event)
	}
	return out
}

func TestEventLoggerLogGraphQueryWritesOneJSONLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	logger, err := NewEventLogger(path)
	require.NoError(t, err)

	logger.LogGraphQuery("getDependencies", "repo-a", 5, 42, true)
	require.NoError(t, logger.Close())

	events := readEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "graph_query", events[0]["event"])
	assert.Equal(t, "getDependencies", events[0]["query_type"])
	assert.Equal(t, "repo-a", events[0]["repository"])
	assert.Equal(t, float64(5), events[0]["result_count"])
	assert.Equal(t, float64(42), events[0]["latency_ms"])
	assert.Equal(t, true, events[0]["cache_hit"])
	assert.NotEmpty(t, events[0]["ts"])
}

func TestEventLoggerAppendsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	logger, err := NewEventLogger(path)
	require.NoError(t, err)

	logger.LogIndexUpdate("repo-a", 3, 10, "success")
	logger.LogError("update", "disk full")
	require.NoError(t, logger.Close())

	events := readEvents(t, path)
	require.Len(t, events, 2)
	assert.Equal(t, "index_update", events[0]["event"])
	assert.Equal(t, "repo-a", events[0]["repo"])
	assert.Equal(t, "error", events[1]["event"])
	assert.Equal(t, "disk full", events[1]["message"])
}

func TestEventLoggerReopensAndAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	first, err := NewEventLogger(path)
	require.NoError(t, err)
	first.LogGraphQuery("getPath", "repo-a", 1, 5, false)
	require.NoError(t, first.Close())

	second, err := NewEventLogger(path)
	require.NoError(t, err)
	second.LogGraphQuery("getPath", "repo-a", 1, 5, false)
	require.NoError(t, second.Close())

	events := readEvents(t, path)
	require.Len(t, events, 2)
}
