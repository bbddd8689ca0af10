package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// EventLogger writes JSONL event records, one per line, adapted from
// the teacher's search-analytics logger into the update/query event
// stream this repo emits.
type EventLogger struct {
	file *os.File
	mu   sync.Mutex
}

// NewEventLogger opens (or creates) the JSONL file at path for
// appending.
func NewEventLogger(path string) (*EventLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &EventLogger{file: file}, nil
}

// Close closes the underlying file.
func (l *EventLogger) Close() error {
	return l.file.Close()
}

func (l *EventLogger) log(event string, data map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"event": event,
	}
	for k, v := range data {
		e[k] = v
	}

	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	l.file.Write(line)
	l.file.Write([]byte("\n"))
}

// LogGraphQuery logs one graph query service call.
func (l *EventLogger) LogGraphQuery(queryType string, repository string, resultCount int, latencyMs int64, cacheHit bool) {
	l.log("graph_query", map[string]interface{}{
		"query_type":   queryType,
		"repository":   repository,
		"result_count": resultCount,
		"latency_ms":   latencyMs,
		"cache_hit":    cacheHit,
	})
}

// LogIndexUpdate logs a coordinator update batch.
func (l *EventLogger) LogIndexUpdate(repo string, filesChanged, chunksUpdated int, status string) {
	l.log("index_update", map[string]interface{}{
		"repo":           repo,
		"files_changed":  filesChanged,
		"chunks_updated": chunksUpdated,
		"status":         status,
	})
}

// LogError logs a generic operation failure.
func (l *EventLogger) LogError(operation, message string) {
	l.log("error", map[string]interface{}{
		"operation": operation,
		"message":   message,
	})
}
