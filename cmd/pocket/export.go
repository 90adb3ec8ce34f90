package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export local receipts to a file",
	Long: `Export the local receipt database to a backup file.

Supports JSON (default) and SQLite formats. JSON exports stream data
so large databases export with flat memory use.

Example:
  pocket export -o backup.json
  pocket export -o backup.db --format sqlite`,
	RunE: runExport,
}

var (
	exportOutputPath string
	exportFormat     string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "Output file path (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json, sqlite")
	_ = exportCmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if format != "json" && format != "sqlite" {
		return fmt.Errorf("invalid format %q: must be 'json' or 'sqlite'", exportFormat)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := ensureParentDir(exportOutputPath); err != nil {
		return err
	}

	ctx := cmd.Context()
	switch format {
	case "json":
		f, err := os.Create(exportOutputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()

		if err := client.ExportJSON(ctx, f); err != nil {
			_ = os.Remove(exportOutputPath)
			return fmt.Errorf("export failed: %w", err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync file: %w", err)
		}
	case "sqlite":
		if err := client.ExportSQLite(ctx, exportOutputPath); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
	}

	if !outputJSON {
		printSuccess(cmd.OutOrStdout(), "Exported to %s", exportOutputPath)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return nil
}
