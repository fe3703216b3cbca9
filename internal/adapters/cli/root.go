// Package cli is the offline indexer command tree: format raw datasets into
// the intermediate chunk file, then build the vector index from it.
package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
)

// ReindexPublisher hands an index build to the worker.
type ReindexPublisher interface {
	PublishReindex(ctx context.Context, req domain.ReindexRequest) error
}

// Services are resolved lazily so that `format` runs without credentials.
type Services struct {
	Formatter func(dataDir string) (ports.DocumentFormatter, error)
	Builder   func(ctx context.Context) (ports.IndexBuilder, func(), error)
	Publisher func() (ReindexPublisher, func(), error)
	Manifest  func(path string) ([]domain.Dataset, error)

	DataDir          string
	ProcessedPath    string
	DefaultIndexName string
}

var services Services

// SetServices installs the dependencies used by every command.
func SetServices(s Services) {
	services = s
}

var rootCmd = &cobra.Command{
	Use:           "indexer",
	Short:         "Prepare and index the cafe knowledge base",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.ExecuteContext(ctx)
}

// Root exposes the command tree for output redirection.
func Root() *cobra.Command {
	return rootCmd
}

var errNotConfigured = errors.New("indexer services not configured")

func absPath(path string) (string, error) {
	if path == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve path", errors.New("path is empty"))
	}
	return filepath.Abs(path)
}
