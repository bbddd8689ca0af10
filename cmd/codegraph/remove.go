// cmd/codegraph/remove.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphindex/core/internal/vectorstore"
)

var removeCmd = &cobra.Command{
	Use:   "remove <repo>",
	Short: "Remove a repository's registration and its indexed chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repos := newRepositoryStore(cfg)
	if _, err := repos.Get(name); err != nil {
		return fmt.Errorf("repository not found: %s", name)
	}

	host, port, useTLS := parseQdrantURL(cfg.Storage.QdrantURL)
	store, err := vectorstore.NewQdrantStore(host, port, useTLS)
	if err == nil {
		defer store.Close()
		if _, delErr := store.DeleteByFilter(context.Background(), name, map[string]interface{}{"repository": name}); delErr != nil {
			fmt.Printf("Warning: failed to delete chunks for %s: %v\n", name, delErr)
		}
	} else {
		fmt.Printf("Warning: could not reach Qdrant to delete chunks: %v\n", err)
	}

	if err := repos.Delete(name); err != nil {
		return fmt.Errorf("failed to remove repository record: %w", err)
	}

	printResult(map[string]string{"removed": name}, func() {
		fmt.Printf("Removed %s\n", name)
	})
	return nil
}
