// cmd/codegraph/update.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphindex/core/internal/coordinator"
)

var updateCmd = &cobra.Command{
	Use:   "update <repo>",
	Short: "Bring one repository's index up to date with HEAD",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

var updateAllCmd = &cobra.Command{
	Use:   "update-all",
	Short: "Update every registered repository",
	RunE:  runUpdateAll,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(updateAllCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	pl, _, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	coord := newCoordinator(cfg, pl)

	result, err := coord.UpdateRepository(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	printResult(result, func() { printUpdateResult(args[0], result) })
	return nil
}

func runUpdateAll(cmd *cobra.Command, args []string) error {
	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	pl, _, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	coord := newCoordinator(cfg, pl)
	repos := newRepositoryStore(cfg)

	all, err := repos.List()
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}

	results := make(map[string]coordinator.CoordinatorResult, len(all))
	for _, r := range all {
		result, err := coord.UpdateRepository(context.Background(), r.Name)
		if err != nil {
			result = coordinator.CoordinatorResult{Status: coordinator.StatusFailed, Errors: []string{err.Error()}}
		}
		results[r.Name] = result
	}

	printResult(results, func() {
		for name, result := range results {
			printUpdateResult(name, result)
		}
	})
	return nil
}

func printUpdateResult(name string, result coordinator.CoordinatorResult) {
	fmt.Printf("%s: %s\n", name, result.Status)
	if result.Status == coordinator.StatusUpdated {
		fmt.Printf("  files added:     %d\n", result.Stats.FilesAdded)
		fmt.Printf("  files modified:  %d\n", result.Stats.FilesModified)
		fmt.Printf("  files deleted:   %d\n", result.Stats.FilesDeleted)
		fmt.Printf("  chunks upserted: %d\n", result.Stats.ChunksUpserted)
		fmt.Printf("  chunks deleted:  %d\n", result.Stats.ChunksDeleted)
	}
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
