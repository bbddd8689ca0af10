// cmd/codegraph/graph.go
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphindex/core/internal/config"
	"github.com/graphindex/core/internal/graph"
	"github.com/graphindex/core/internal/graphingest"
	"github.com/graphindex/core/internal/graphquery"
	"github.com/graphindex/core/internal/metrics"
	"github.com/graphindex/core/internal/migrate"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Manage the property graph backing a repository",
}

var (
	graphPopulateForce bool
	graphPopulatePath  string
)

var graphPopulateCmd = &cobra.Command{
	Use:   "populate <repo>",
	Short: "Walk a repository and ingest its modules, symbols, and concepts into the graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphPopulate,
}

var (
	transferTargetConfig string
	transferSourceDialect string
	transferTargetDialect string
	transferSampleSize   int
	transferDryRun       bool
)

var graphTransferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Copy every node and relationship from the configured graph into another one",
	RunE:  runGraphTransfer,
}

var (
	queryRepository string
	queryDepth      int
	queryTransitive bool
	queryMaxHops    int
	queryDetail     string
	queryExternal   bool
)

var graphQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run C3 graph queries (dependencies, dependents, path, architecture) against the configured graph",
}

var graphDependenciesCmd = &cobra.Command{
	Use:   "dependencies <entity-path>",
	Short: "List what an entity depends on",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphDependencies(false),
}

var graphDependentsCmd = &cobra.Command{
	Use:   "dependents <entity-path>",
	Short: "List what depends on an entity, with impact analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphDependencies(true),
}

var graphPathCmd = &cobra.Command{
	Use:   "path <from-entity> <to-entity>",
	Short: "Find whether a path exists between two entities",
	Args:  cobra.ExactArgs(2),
	RunE:  runGraphPath,
}

var graphArchitectureCmd = &cobra.Command{
	Use:   "architecture",
	Short: "Summarize a repository's structure at a detail level",
	RunE:  runGraphArchitecture,
}

func init() {
	graphPopulateCmd.Flags().BoolVar(&graphPopulateForce, "force", false, "Re-ingest even if the repository has not changed")
	graphPopulateCmd.Flags().StringVar(&graphPopulatePath, "path", "", "Local checkout path (defaults to the repository's registered clone path)")
	graphCmd.AddCommand(graphPopulateCmd)

	for _, c := range []*cobra.Command{graphDependenciesCmd, graphDependentsCmd} {
		c.Flags().StringVar(&queryRepository, "repository", "", "Repository name (required)")
		c.Flags().IntVar(&queryDepth, "depth", 1, "Traversal depth, clamped to [1,5]")
		c.Flags().BoolVar(&queryTransitive, "transitive", false, "Include transitive dependencies")
		graphQueryCmd.AddCommand(c)
	}
	graphPathCmd.Flags().StringVar(&queryRepository, "repository", "", "Repository name (required)")
	graphPathCmd.Flags().IntVar(&queryMaxHops, "max-hops", 5, "Maximum hops, clamped to [1,10]")
	graphQueryCmd.AddCommand(graphPathCmd)

	graphArchitectureCmd.Flags().StringVar(&queryRepository, "repository", "", "Repository name (required)")
	graphArchitectureCmd.Flags().StringVar(&queryDetail, "detail", "modules", "One of packages, modules, files, entities")
	graphArchitectureCmd.Flags().BoolVar(&queryExternal, "include-external", false, "Include nodes outside this repository")
	graphQueryCmd.AddCommand(graphArchitectureCmd)

	graphCmd.AddCommand(graphQueryCmd)

	graphTransferCmd.Flags().StringVar(&transferTargetConfig, "target-config", "", "Path to the target graph's config file (required)")
	graphTransferCmd.Flags().StringVar(&transferSourceDialect, "source-dialect", "", "Override the source dialect (neo4j|falkordb); defaults to the configured adapter")
	graphTransferCmd.Flags().StringVar(&transferTargetDialect, "target-dialect", "", "Override the target dialect (neo4j|falkordb); defaults to the target config's adapter")
	graphTransferCmd.Flags().IntVar(&transferSampleSize, "sample-size", migrate.DefaultSampleSize, "Number of nodes to spot-check after import")
	graphTransferCmd.Flags().BoolVar(&transferDryRun, "dry-run", false, "Export and map without writing to the target")
	graphCmd.AddCommand(graphTransferCmd)

	rootCmd.AddCommand(graphCmd)
}

func runGraphPopulate(cmd *cobra.Command, args []string) error {
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

	repoPath := graphPopulatePath
	if repoPath == "" {
		repoPath = dataPath(cfg, "repos", name)
	}

	adapter, err := newGraphAdapter(cfg)
	if err != nil {
		return fmt.Errorf("failed to build graph adapter: %w", err)
	}
	ctx := context.Background()
	if err := adapter.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to graph: %w", err)
	}
	defer adapter.Disconnect(ctx)
	if err := adapter.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure graph schema: %w", err)
	}

	ing := graphingest.New(adapter, nil)
	stats, err := ing.Ingest(ctx, name, repoPath)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	_ = info

	printResult(stats, func() {
		fmt.Printf("Populated graph for %s\n", name)
		fmt.Printf("  files processed:       %d\n", stats.FilesProcessed)
		fmt.Printf("  modules upserted:      %d\n", stats.ModulesUpserted)
		fmt.Printf("  functions upserted:    %d\n", stats.FunctionsUpserted)
		fmt.Printf("  classes upserted:      %d\n", stats.ClassesUpserted)
		fmt.Printf("  concepts upserted:     %d\n", stats.ConceptsUpserted)
		fmt.Printf("  relationships created: %d\n", stats.RelationshipsCreated)
		if len(stats.Errors) > 0 {
			fmt.Printf("  errors: %d\n", len(stats.Errors))
			for _, e := range stats.Errors {
				fmt.Printf("    - %s\n", e)
			}
		}
	})
	return nil
}

func runGraphTransfer(cmd *cobra.Command, args []string) error {
	if transferTargetConfig == "" {
		return fmt.Errorf("--target-config is required")
	}

	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	targetCfg, err := config.LoadConfig(transferTargetConfig)
	if err != nil {
		return fmt.Errorf("failed to load target config: %w", err)
	}

	sourceDialect := graph.AdapterType(cfg.Graph.Adapter)
	if transferSourceDialect != "" {
		sourceDialect = graph.AdapterType(transferSourceDialect)
	}
	targetDialect := graph.AdapterType(targetCfg.Graph.Adapter)
	if transferTargetDialect != "" {
		targetDialect = graph.AdapterType(transferTargetDialect)
	}

	source, err := newGraphAdapter(cfg)
	if err != nil {
		return fmt.Errorf("failed to build source graph adapter: %w", err)
	}
	target, err := newGraphAdapter(targetCfg)
	if err != nil {
		return fmt.Errorf("failed to build target graph adapter: %w", err)
	}

	ctx := context.Background()
	if err := source.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to source graph: %w", err)
	}
	defer source.Disconnect(ctx)
	if err := target.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to target graph: %w", err)
	}
	defer target.Disconnect(ctx)
	if !transferDryRun {
		if err := target.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to ensure target graph schema: %w", err)
		}
	}

	result, err := migrate.Transfer(ctx, source, target, migrate.TransferOptions{
		SourceDialect: sourceDialect,
		TargetDialect: targetDialect,
		SampleSize:    transferSampleSize,
		DryRun:        transferDryRun,
	})
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}

	printResult(result, func() {
		fmt.Printf("nodes imported:         %d\n", result.Import.NodesImported)
		fmt.Printf("relationships imported: %d\n", result.Import.RelationshipsImported)
		if len(result.Import.Errors) > 0 {
			fmt.Printf("import errors: %d\n", len(result.Import.Errors))
			for _, e := range result.Import.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
		if !transferDryRun {
			fmt.Printf("validation: valid=%v sampled=%d mismatched=%d\n",
				result.Validation.IsValid, result.Validation.SampledChecked, result.Validation.SampledMismatched)
			for _, d := range result.Validation.Discrepancies {
				fmt.Printf("  discrepancy[%s]: %s\n", d.Kind, d.Message)
			}
		}
	})
	return nil
}

// newGraphQueryService connects the configured adapter and wraps it
// in a C3 query service with the default cache/timeout/metrics ring,
// the one construction site every `graph query` subcommand shares.
func newGraphQueryService(cfg *config.Config) (*graphquery.Service, graph.Adapter, error) {
	adapter, err := newGraphAdapter(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build graph adapter: %w", err)
	}
	if err := adapter.Connect(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to graph: %w", err)
	}
	svc := graphquery.New(adapter, metrics.NewRing(0)).WithEventLogger(newEventLogger(cfg))
	return svc, adapter, nil
}

func runGraphDependencies(dependents bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if queryRepository == "" {
			return fmt.Errorf("--repository is required")
		}
		cfg, err := loadGlobalConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		svc, adapter, err := newGraphQueryService(cfg)
		if err != nil {
			return err
		}
		defer adapter.Disconnect(context.Background())

		q := graphquery.DependencyQuery{
			EntityPath:        args[0],
			Repository:        queryRepository,
			Depth:             queryDepth,
			IncludeTransitive: queryTransitive,
		}

		if dependents {
			result, err := svc.GetDependents(cmd.Context(), q)
			if err != nil {
				return err
			}
			printResult(result, func() { printDependencyResult(args[0], result.Result, result.FromCache, result.ImpactCounts) })
			return nil
		}

		result, err := svc.GetDependencies(cmd.Context(), q)
		if err != nil {
			return err
		}
		printResult(result, func() { printDependencyResult(args[0], result.Result, result.FromCache, nil) })
		return nil
	}
}

func printDependencyResult(entity string, result graph.DependencyResult, fromCache bool, impact *graphquery.ImpactAnalysis) {
	fmt.Printf("%s (from_cache=%v)\n", entity, fromCache)
	fmt.Printf("  direct:     %d\n", len(result.Direct))
	fmt.Printf("  transitive: %d\n", len(result.Transitive))
	fmt.Printf("  impact score: %.2f\n", result.ImpactScore)
	if impact != nil {
		fmt.Printf("  impact: direct=%d transitive=%d score=%.2f\n",
			impact.DirectImpactCount, impact.TransitiveImpactCount, impact.ImpactScore)
	}
}

func runGraphPath(cmd *cobra.Command, args []string) error {
	if queryRepository == "" {
		return fmt.Errorf("--repository is required")
	}
	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	svc, adapter, err := newGraphQueryService(cfg)
	if err != nil {
		return err
	}
	defer adapter.Disconnect(context.Background())

	result, err := svc.GetPath(cmd.Context(), graphquery.PathQuery{
		FromEntity: args[0],
		ToEntity:   args[1],
		Repository: queryRepository,
		MaxHops:    queryMaxHops,
	})
	if err != nil {
		return err
	}

	printResult(result, func() {
		fmt.Printf("path_exists=%v (from_cache=%v)\n", result.PathExists, result.FromCache)
		names := make([]string, len(result.Path))
		for i, n := range result.Path {
			names[i] = n.ID
		}
		fmt.Printf("  path: %s\n", strings.Join(names, " -> "))
	})
	return nil
}

func runGraphArchitecture(cmd *cobra.Command, args []string) error {
	if queryRepository == "" {
		return fmt.Errorf("--repository is required")
	}
	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	svc, adapter, err := newGraphQueryService(cfg)
	if err != nil {
		return err
	}
	defer adapter.Disconnect(context.Background())

	result, err := svc.GetArchitecture(cmd.Context(), graphquery.ArchitectureQuery{
		Repository:      queryRepository,
		DetailLevel:     queryDetail,
		IncludeExternal: queryExternal,
	})
	if err != nil {
		return err
	}

	printResult(result, func() {
		fmt.Printf("%s (from_cache=%v)\n", result.Root.Name, result.FromCache)
		for _, child := range result.Root.Children {
			fmt.Printf("  %s: %s (%s)\n", child.Type, child.Name, child.Path)
		}
		fmt.Printf("  inter-module edges: %d\n", len(result.InterModuleDependencies))
	})
	return nil
}
