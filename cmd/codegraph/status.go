// cmd/codegraph/status.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every indexed repository's status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repos, err := newRepositoryStore(cfg).List()
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}

	printResult(repos, func() {
		if len(repos) == 0 {
			fmt.Println("No repositories indexed. Run 'codegraph index <url>' to add one.")
			return
		}
		for _, r := range repos {
			fmt.Printf("%s\n", r.Name)
			fmt.Printf("  status:      %s\n", r.Status)
			fmt.Printf("  files:       %d\n", r.FileCount)
			fmt.Printf("  chunks:      %d\n", r.ChunkCount)
			fmt.Printf("  commit:      %s\n", r.LastIndexedCommitSha)
			fmt.Printf("  updates:     %d\n", r.IncrementalUpdateCount)
			if r.UpdateInProgress {
				fmt.Printf("  update in progress since %s\n", r.UpdateStartedAt)
			}
			if r.ErrorMessage != "" {
				fmt.Printf("  error:       %s\n", r.ErrorMessage)
			}
		}
	})

	return nil
}
