package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	formatManifest string
	formatDataDir  string
	formatOut      string
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Format raw menu, branch and note records into chunks",
	Long: `Reads every dataset listed in the manifest, formats each record into a
text chunk with metadata and writes all chunks to one JSON file.
A record missing a required field aborts the run and nothing is written.`,
	Args: cobra.NoArgs,
	RunE: runFormat,
}

func init() {
	formatCmd.Flags().StringVar(&formatManifest, "manifest", "", "dataset manifest (YAML); defaults to menu, branches, notes")
	formatCmd.Flags().StringVar(&formatDataDir, "data-dir", "", "directory holding the raw JSON files")
	formatCmd.Flags().StringVar(&formatOut, "out", "", "output chunk file")
	rootCmd.AddCommand(formatCmd)
}

func runFormat(cmd *cobra.Command, _ []string) error {
	if services.Formatter == nil || services.Manifest == nil {
		return errNotConfigured
	}

	manifest, err := services.Manifest(formatManifest)
	if err != nil {
		return err
	}

	dataDir := formatDataDir
	if dataDir == "" {
		dataDir = services.DataDir
	}
	out := formatOut
	if out == "" {
		out = services.ProcessedPath
	}
	outPath, err := absPath(out)
	if err != nil {
		return err
	}

	formatter, err := services.Formatter(dataDir)
	if err != nil {
		return err
	}
	n, err := formatter.FormatAll(cmd.Context(), manifest, outPath)
	if err != nil {
		return fmt.Errorf("format datasets: %w", err)
	}

	cmd.Printf("Processed %d documents!\n", n)
	return nil
}
