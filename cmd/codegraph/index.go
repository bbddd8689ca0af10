// cmd/codegraph/index.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graphindex/core/internal/coordinator"
)

var (
	indexName   string
	indexBranch string
)

var indexCmd = &cobra.Command{
	Use:   "index <url>",
	Short: "Clone and index a repository for the first time",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexCmd,
}

func init() {
	indexCmd.Flags().StringVar(&indexName, "name", "", "Repository name override (derived from the URL by default)")
	indexCmd.Flags().StringVar(&indexBranch, "branch", "", "Branch to clone (default branch if empty)")
	rootCmd.AddCommand(indexCmd)
}

func runIndexCmd(cmd *cobra.Command, args []string) error {
	url := args[0]

	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	name := indexName
	if name == "" {
		name = coordinator.DeriveRepositoryName(url)
	}
	localPath := dataPath(cfg, "repos", name)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}

	pl, embedder, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	coord := newCoordinator(cfg, pl)

	fmt.Printf("Cloning and indexing %s...\n", url)

	result, err := coord.IndexRepository(context.Background(), coordinator.IndexOptions{
		URL:                 url,
		Name:                indexName,
		Branch:              indexBranch,
		LocalPath:           localPath,
		EmbeddingProvider:   "voyage",
		EmbeddingModel:      embedder.Model(),
		EmbeddingDimensions: embedder.Dimension(),
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	printResult(result, func() {
		fmt.Printf("Indexed %s at %s\n", name, result.CommitSha)
		fmt.Printf("  files added:     %d\n", result.Stats.FilesAdded)
		fmt.Printf("  chunks upserted: %d\n", result.Stats.ChunksUpserted)
		if len(result.Errors) > 0 {
			fmt.Printf("  errors: %d\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}
	})

	return nil
}
