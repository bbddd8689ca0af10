// cmd/codegraph/main.go
package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graphindex/core/internal/config"
	"github.com/graphindex/core/internal/coordinator"
	"github.com/graphindex/core/internal/embedding"
	"github.com/graphindex/core/internal/graph"
	"github.com/graphindex/core/internal/metrics"
	"github.com/graphindex/core/internal/pipeline"
	"github.com/graphindex/core/internal/vectorstore"
)

// exitCode values follow the §6.5 contract: 0 success, 1 user-facing
// failure, 130 cancelled.
const (
	exitSuccess = 0
	exitFailure = 1
	exitCancel  = 130
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "Hybrid vector/graph code indexing",
	Long:  `Index repositories into a vector store and a labelled property graph, then query both.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}

func printResult(v interface{}, human func()) {
	if jsonOutput {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Println(string(data))
		return
	}
	human()
}

func globalConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".codegraph.yaml"
	}
	return filepath.Join(homeDir, ".config", "codegraph", "config.yaml")
}

func loadGlobalConfig() (*config.Config, error) {
	return config.LoadConfig(globalConfigPath())
}

func dataPath(cfg *config.Config, parts ...string) string {
	all := append([]string{cfg.DataPath}, parts...)
	return filepath.Join(all...)
}

func reposPath(cfg *config.Config) string {
	return dataPath(cfg, "repositories.json")
}

func historyDir(cfg *config.Config) string {
	dir := dataPath(cfg, "history")
	os.MkdirAll(dir, 0o755)
	return dir
}

func eventLogPath(cfg *config.Config) string {
	return dataPath(cfg, "events.jsonl")
}

// newEventLogger opens the shared cross-repository JSONL event stream
// that both the coordinator's update/index runs and the graph query
// service's query calls append to, the same log internal/metrics'
// Analyzer later summarises for `codegraph stats`. Failure to open it
// degrades to no metrics logging rather than failing the command.
func newEventLogger(cfg *config.Config) *metrics.EventLogger {
	logger, err := metrics.NewEventLogger(eventLogPath(cfg))
	if err != nil {
		return nil
	}
	return logger
}

// newPipeline wires the embedding client and vector store the same
// way for every command that needs to run chunks through Qdrant: one
// construction site so the Voyage API key and Qdrant host/port are
// read from the environment and config exactly once.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, *embedding.Client, error) {
	voyageKey := os.Getenv("VOYAGE_API_KEY")
	if voyageKey == "" {
		return nil, nil, fmt.Errorf("VOYAGE_API_KEY environment variable not set")
	}
	provider := embedding.NewVoyageClient(voyageKey, cfg.Embedding.Model)
	client := embedding.NewClient(provider)

	host, port, useTLS := parseQdrantURL(cfg.Storage.QdrantURL)
	store, err := vectorstore.NewQdrantStore(host, port, useTLS)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", cfg.Storage.QdrantURL, err)
	}

	return pipeline.New(client, store), client, nil
}

func newCoordinator(cfg *config.Config, pl *pipeline.Pipeline) *coordinator.Coordinator {
	repos := coordinator.NewRepositoryStore(reposPath(cfg))
	coord := coordinator.New(repos, pl, historyDir(cfg), nil, nil)
	return coord.WithEventLogger(newEventLogger(cfg))
}

func newRepositoryStore(cfg *config.Config) *coordinator.RepositoryStore {
	return coordinator.NewRepositoryStore(reposPath(cfg))
}

// newGraphAdapter connects the C2 adapter selected by cfg.Graph and
// ensures its schema, the same two steps every graph-touching command
// (graph populate, graph transfer, a future query surface) needs
// before its first query.
func newGraphAdapter(cfg *config.Config) (graph.Adapter, error) {
	adapterType := graph.AdapterType(cfg.Graph.Adapter)
	adapter, err := graph.New(adapterType, graph.Config{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	})
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

func parseQdrantURL(raw string) (host string, port int, useTLS bool) {
	host, port, useTLS = "localhost", 6333, false
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	if u.Hostname() != "" {
		host = u.Hostname()
	}
	if p := u.Port(); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}
	useTLS = u.Scheme == "https"
	return
}
