package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"time"
)

// Analyzer reads an EventLogger's JSONL file and aggregates it over a
// historical window, complementing the in-memory Ring, which only
// ever holds the most recent N calls.
type Analyzer struct {
	logPath string
}

// NewAnalyzer builds an Analyzer over the JSONL file at logPath.
func NewAnalyzer(logPath string) *Analyzer {
	return &Analyzer{logPath: logPath}
}

// Summary is the aggregated report over one lookback window.
type Summary struct {
	Period          string         `json:"period"`
	TotalQueries    int            `json:"total_queries"`
	QueriesByType   map[string]int `json:"queries_by_type"`
	AvgLatencyMs    int64          `json:"avg_latency_ms"`
	ZeroResultCount int            `json:"zero_result_count"`
	CacheHits       int            `json:"cache_hits"`
	TopRepositories []RepoCount    `json:"top_repositories"`
}

// RepoCount pairs a repository with its query count.
type RepoCount struct {
	Repository string `json:"repository"`
	Count      int    `json:"count"`
}

// Analyze scans the log for graph_query events newer than now-since.
func (a *Analyzer) Analyze(since time.Duration) (*Summary, error) {
	file, err := os.Open(a.logPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cutoff := time.Now().Add(-since)
	summary := &Summary{Period: since.String(), QueriesByType: make(map[string]int)}

	repoCounts := make(map[string]int)
	var totalLatency int64
	var latencyCount int

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}

		tsStr, ok := event["ts"].(string)
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339, tsStr)
		if err != nil || ts.Before(cutoff) {
			continue
		}

		if eventType, _ := event["event"].(string); eventType != "graph_query" {
			continue
		}

		summary.TotalQueries++
		if qt, ok := event["query_type"].(string); ok {
			summary.QueriesByType[qt]++
		}
		if results, ok := event["result_count"].(float64); ok && results == 0 {
			summary.ZeroResultCount++
		}
		if latency, ok := event["latency_ms"].(float64); ok {
			totalLatency += int64(latency)
			latencyCount++
		}
		if cacheHit, ok := event["cache_hit"].(bool); ok && cacheHit {
			summary.CacheHits++
		}
		if repo, ok := event["repository"].(string); ok {
			repoCounts[repo]++
		}
	}

	if latencyCount > 0 {
		summary.AvgLatencyMs = totalLatency / int64(latencyCount)
	}

	type kv struct {
		Key   string
		Value int
	}
	var sorted []kv
	for k, v := range repoCounts {
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	for i := 0; i < len(sorted) && i < 10; i++ {
		summary.TopRepositories = append(summary.TopRepositories, RepoCount{Repository: sorted[i].Key, Count: sorted[i].Value})
	}

	return summary, nil
}
