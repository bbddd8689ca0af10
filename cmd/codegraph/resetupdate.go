// cmd/codegraph/resetupdate.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphindex/core/internal/coordinator"
	"github.com/graphindex/core/internal/types"
)

var (
	resetUpdateRecover bool
	resetUpdateForce   bool
)

var resetUpdateCmd = &cobra.Command{
	Use:   "reset-update <repo>",
	Short: "Clear an interrupted update's in-progress marker",
	Args:  cobra.ExactArgs(1),
	RunE:  runResetUpdate,
}

func init() {
	resetUpdateCmd.Flags().BoolVar(&resetUpdateRecover, "recover", false, "Carry out the recommended recovery strategy instead of only clearing the marker")
	resetUpdateCmd.Flags().BoolVar(&resetUpdateForce, "force", false, "Clear the marker even if the repository is not currently marked in-progress")
	rootCmd.AddCommand(resetUpdateCmd)
}

func runResetUpdate(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	repos := newRepositoryStore(cfg)

	info, err := repos.Get(name)
	if err != nil {
		return fmt.Errorf("repository not found: %s", name)
	}

	if !info.UpdateInProgress && !resetUpdateForce {
		printResult(map[string]string{"status": "no_interrupted_update"}, func() {
			fmt.Printf("%s has no interrupted update in progress (use --force to clear anyway)\n", name)
		})
		return nil
	}

	if !resetUpdateRecover {
		if _, err := repos.Update(name, func(r *types.RepositoryInfo) {
			r.UpdateInProgress = false
			r.UpdateStartedAt = nil
		}); err != nil {
			return fmt.Errorf("failed to clear marker: %w", err)
		}
		printResult(map[string]string{"status": "marker_cleared"}, func() {
			fmt.Printf("Cleared the in-progress marker for %s\n", name)
		})
		return nil
	}

	pl, _, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	coord := newCoordinator(cfg, pl)

	interrupted, err := coord.DetectInterruptedUpdates()
	if err != nil {
		return fmt.Errorf("failed to detect interrupted updates: %w", err)
	}

	var strategy coordinator.RecoveryStrategy
	found := false
	for _, ir := range interrupted {
		if ir.Info.Name == name {
			strategy = ir.Strategy
			found = true
			break
		}
	}
	if !found {
		printResult(map[string]string{"status": "no_interrupted_update"}, func() {
			fmt.Printf("%s has no interrupted update in progress\n", name)
		})
		return nil
	}

	result, err := coord.ExecuteRecovery(context.Background(), info, strategy)
	if err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}

	printResult(result, func() {
		fmt.Printf("Recovery strategy for %s: %s (%s)\n", name, strategy.Type, strategy.Reason)
		printUpdateResult(name, result)
	})
	return nil
}
