// cmd/codegraph/stats.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphindex/core/internal/metrics"
)

var statsSince time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise recent graph query and index update activity",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().DurationVar(&statsSince, "since", 24*time.Hour, "lookback window")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	analyzer := metrics.NewAnalyzer(eventLogPath(cfg))
	summary, err := analyzer.Analyze(statsSince)
	if os.IsNotExist(err) {
		summary = &metrics.Summary{Period: statsSince.String(), QueriesByType: map[string]int{}}
		err = nil
	}
	if err != nil {
		return fmt.Errorf("failed to analyze event log: %w", err)
	}

	printResult(summary, func() { printStatsSummary(summary) })
	return nil
}

func printStatsSummary(s *metrics.Summary) {
	fmt.Printf("period:          last %s\n", s.Period)
	fmt.Printf("total queries:   %d\n", s.TotalQueries)
	fmt.Printf("avg latency:     %dms\n", s.AvgLatencyMs)
	fmt.Printf("zero results:    %d\n", s.ZeroResultCount)
	fmt.Printf("cache hits:      %d\n", s.CacheHits)
	if len(s.QueriesByType) > 0 {
		fmt.Println("by query type:")
		for qt, count := range s.QueriesByType {
			fmt.Printf("  %-16s %d\n", qt, count)
		}
	}
	if len(s.TopRepositories) > 0 {
		fmt.Println("top repositories:")
		for _, rc := range s.TopRepositories {
			fmt.Printf("  %-24s %d\n", rc.Repository, rc.Count)
		}
	}
}
