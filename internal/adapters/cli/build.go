package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

var (
	buildPath      string
	buildIndexName string
	buildAsync     bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Create the vector index if needed and upsert all chunks",
	Long: `Loads the formatted chunk file, ensures the named index exists and
upserts every chunk. With --async the build is queued for the worker.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildPath, "path", "", "formatted chunk file")
	buildCmd.Flags().StringVar(&buildIndexName, "index-name", "", "vector index name")
	buildCmd.Flags().BoolVar(&buildAsync, "async", false, "queue the build for the worker instead of running it")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	path := buildPath
	if path == "" {
		path = services.ProcessedPath
	}
	inputPath, err := absPath(path)
	if err != nil {
		return err
	}
	indexName := buildIndexName
	if indexName == "" {
		indexName = services.DefaultIndexName
	}

	if buildAsync {
		return publishBuild(cmd, inputPath, indexName)
	}

	if services.Builder == nil {
		return errNotConfigured
	}
	builder, closeFn, err := services.Builder(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := builder.Build(cmd.Context(), inputPath, indexName)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	cmd.Printf("Indexed %d documents into '%s'.\n", n, indexName)
	return nil
}

func publishBuild(cmd *cobra.Command, inputPath, indexName string) error {
	if services.Publisher == nil {
		return errNotConfigured
	}
	publisher, closeFn, err := services.Publisher()
	if err != nil {
		return err
	}
	defer closeFn()

	req := domain.ReindexRequest{
		Path:      inputPath,
		IndexName: indexName,
		CreatedAt: time.Now().UTC(),
	}
	if err := publisher.PublishReindex(cmd.Context(), req); err != nil {
		return fmt.Errorf("queue index build: %w", err)
	}

	cmd.Printf("Queued build of '%s' from %s.\n", indexName, inputPath)
	return nil
}
